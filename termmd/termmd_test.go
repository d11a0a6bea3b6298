package termmd

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func plainRenderer() *Renderer {
	lr := lipgloss.NewRenderer(io.Discard)
	lr.SetColorProfile(termenv.Ascii)
	return New(DefaultStyles(lr))
}

func expect(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("\ngot:  %q\nwant: %q", got, want)
	}
}

func TestPlainText(t *testing.T) {
	expect(t, plainRenderer().Render("Hello world"), "Hello world")
}

func TestEmphasisKeepsText(t *testing.T) {
	r := plainRenderer()
	expect(t, r.Render("Hello **world**"), "Hello world")
	expect(t, r.Render("Hello *world*"), "Hello world")
	expect(t, r.Render("Hello ~~world~~"), "Hello world")
}

func TestHeadings(t *testing.T) {
	r := plainRenderer()
	for _, in := range []string{"# Title", "## Title", "### Title"} {
		expect(t, r.Render(in), "Title")
	}
	expect(t, r.Render("# About\n\nFrancisco writes Go."), "About\n\nFrancisco writes Go.")
}

func TestSoftBreaksJoin(t *testing.T) {
	expect(t, plainRenderer().Render("line one\nline two"), "line one line two")
}

func TestInlineCode(t *testing.T) {
	expect(t, plainRenderer().Render("Use `fmt.Println`"), "Use fmt.Println")
}

func TestFencedCodeBlockIndented(t *testing.T) {
	got := plainRenderer().Render("```go\nfmt.Println(\"hi\")\nreturn\n```")
	expect(t, got, "  fmt.Println(\"hi\")\n  return")
}

func TestLinks(t *testing.T) {
	r := plainRenderer()
	expect(t, r.Render("[GitHub](https://github.com/fbarrios)"), "GitHub (https://github.com/fbarrios)")
	expect(t, r.Render("<https://fbarrios.dev>"), "https://fbarrios.dev")
	expect(t, r.Render("![screenshot](https://img.example/a.png)"), "[image: screenshot] (https://img.example/a.png)")
}

func TestLists(t *testing.T) {
	r := plainRenderer()
	expect(t, r.Render("- Go\n- TypeScript"), "• Go\n• TypeScript")
	expect(t, r.Render("3. three\n4. four"), "3. three\n4. four")
	expect(t, r.Render("- a\n  - nested"), "• a\n  • nested")

	got := r.Render("- [x] done\n- [ ] todo")
	if !strings.Contains(got, "[x]") || !strings.Contains(got, "[ ]") || !strings.Contains(got, "todo") {
		t.Errorf("task list = %q", got)
	}
}

func TestBlockquote(t *testing.T) {
	expect(t, plainRenderer().Render("> quoted\n> text"), "│ quoted text")
}

func TestThematicBreak(t *testing.T) {
	got := plainRenderer().Render("above\n\n---\n\nbelow")
	if !strings.Contains(got, strings.Repeat("─", 24)) {
		t.Fatalf("missing rule: %q", got)
	}
}

func TestTable(t *testing.T) {
	md := "| Skill | Years |\n|---|---|\n| Go | 6 |\n| React | 4 |"
	want := "1.\n• Skill: Go\n• Years: 6\n\n2.\n• Skill: React\n• Years: 4"
	expect(t, plainRenderer().Render(md), want)
}

func TestColorProfileAddsEscapes(t *testing.T) {
	lr := lipgloss.NewRenderer(io.Discard)
	lr.SetColorProfile(termenv.ANSI256)
	got := New(DefaultStyles(lr)).Render("**bold**")
	if !strings.Contains(got, "\x1b[") || !strings.Contains(got, "bold") {
		t.Fatalf("expected ANSI styling, got %q", got)
	}
}
