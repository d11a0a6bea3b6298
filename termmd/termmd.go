// Package termmd renders the Markdown of assistant replies as styled terminal
// text.
//
// Markdown is parsed with goldmark (GFM enabled) and each node is mapped to a
// lipgloss style:
//   - Headings become bold accent lines
//   - Code spans and fenced blocks use the code style, blocks indented
//   - Links print their text followed by the URL
//   - Tables become numbered "header: cell" blocks
//   - Images become "[image: alt]" plus the URL
package termmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Styles holds one style per Markdown construct.
type Styles struct {
	Heading lipgloss.Style
	Bold    lipgloss.Style
	Italic  lipgloss.Style
	Strike  lipgloss.Style
	Code    lipgloss.Style
	Link    lipgloss.Style
	Quote   lipgloss.Style
	Rule    lipgloss.Style
}

// DefaultStyles builds the palette used by the chat client on r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Bold:    r.NewStyle().Bold(true),
		Italic:  r.NewStyle().Italic(true),
		Strike:  r.NewStyle().Strikethrough(true),
		Code:    r.NewStyle().Foreground(lipgloss.Color("215")),
		Link:    r.NewStyle().Underline(true).Foreground(lipgloss.Color("45")),
		Quote:   r.NewStyle().Foreground(lipgloss.Color("245")),
		Rule:    r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Renderer converts Markdown into terminal text.
type Renderer struct {
	styles Styles
	md     goldmark.Markdown
}

// New returns a Renderer using styles.
func New(styles Styles) *Renderer {
	return &Renderer{
		styles: styles,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render converts markdown. Trailing blank lines are trimmed.
func (r *Renderer) Render(markdown string) string {
	source := []byte(markdown)
	doc := r.md.Parser().Parse(text.NewReader(source))

	w := &writer{source: source, st: r.styles}
	w.walkBlock(doc)
	return strings.TrimRight(w.buf.String(), "\n ")
}

type writer struct {
	source    []byte
	st        Styles
	buf       bytes.Buffer
	listDepth int
}

func (w *writer) walkBlock(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.block(c)
	}
}

func (w *writer) block(node ast.Node) {
	switch n := node.(type) {
	case *ast.Document:
		w.walkBlock(n)

	case *ast.Heading:
		w.buf.WriteString(w.st.Heading.Render(w.inlineString(n)))
		w.buf.WriteString("\n\n")

	case *ast.Paragraph:
		w.inlines(n)
		w.buf.WriteString("\n\n")

	case *ast.TextBlock:
		w.inlines(n)
		w.buf.WriteString("\n")

	case *ast.Blockquote:
		sub := &writer{source: w.source, st: w.st}
		sub.walkBlock(n)
		body := strings.TrimRight(sub.buf.String(), "\n ")
		for _, line := range strings.Split(body, "\n") {
			w.buf.WriteString(w.st.Quote.Render("│ " + line))
			w.buf.WriteByte('\n')
		}
		w.buf.WriteByte('\n')

	case *ast.List:
		w.list(n)

	case *ast.ListItem:
		w.walkBlock(n)

	case *ast.FencedCodeBlock:
		w.codeLines(n)

	case *ast.CodeBlock:
		w.codeLines(n)

	case *ast.ThematicBreak:
		w.buf.WriteString(w.st.Rule.Render(strings.Repeat("─", 24)))
		w.buf.WriteString("\n\n")

	case *ast.HTMLBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.buf.Write(seg.Value(w.source))
		}
		w.buf.WriteString("\n")

	default:
		if t, ok := node.(*east.Table); ok {
			w.table(t)
			return
		}
		if node.HasChildren() {
			w.walkBlock(node)
		}
	}
}

// codeLines writes a code block indented by two spaces, one styled line at a
// time so styles never span a newline.
func (w *writer) codeLines(n ast.Node) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(w.source)), "\n")
		w.buf.WriteString("  ")
		w.buf.WriteString(w.st.Code.Render(line))
		w.buf.WriteByte('\n')
	}
	w.buf.WriteByte('\n')
}

func (w *writer) inlineString(n ast.Node) string {
	sub := &writer{source: w.source, st: w.st, listDepth: w.listDepth}
	sub.inlines(n)
	return sub.buf.String()
}

func (w *writer) inlines(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(c)
	}
}

func (w *writer) inline(node ast.Node) {
	switch n := node.(type) {
	case *ast.Text:
		w.buf.Write(n.Text(w.source))
		if n.SoftLineBreak() {
			w.buf.WriteByte(' ')
		}
		if n.HardLineBreak() {
			w.buf.WriteByte('\n')
		}

	case *ast.String:
		w.buf.Write(n.Value)

	case *ast.Emphasis:
		style := w.st.Italic
		if n.Level == 2 {
			style = w.st.Bold
		}
		w.buf.WriteString(style.Render(w.inlineString(n)))

	case *ast.CodeSpan:
		w.buf.WriteString(w.st.Code.Render(w.textContent(n)))

	case *ast.Link:
		label := w.inlineString(n)
		dest := string(n.Destination)
		if label == "" || label == dest {
			w.buf.WriteString(w.st.Link.Render(dest))
			return
		}
		fmt.Fprintf(&w.buf, "%s (%s)", label, w.st.Link.Render(dest))

	case *ast.AutoLink:
		w.buf.WriteString(w.st.Link.Render(string(n.URL(w.source))))

	case *ast.Image:
		alt := w.textContent(n)
		if alt == "" {
			alt = "image"
		}
		fmt.Fprintf(&w.buf, "[image: %s] (%s)", alt, w.st.Link.Render(string(n.Destination)))

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			w.buf.Write(seg.Value(w.source))
		}

	default:
		switch v := node.(type) {
		case *east.Strikethrough:
			w.buf.WriteString(w.st.Strike.Render(w.inlineString(v)))
		case *east.TaskCheckBox:
			if v.IsChecked {
				w.buf.WriteString("[x] ")
			} else {
				w.buf.WriteString("[ ] ")
			}
		default:
			if node.HasChildren() {
				w.inlines(node)
			}
		}
	}
}

// textContent returns the unstyled text of a node tree.
func (w *writer) textContent(n ast.Node) string {
	var buf bytes.Buffer
	w.collectText(n, &buf)
	return buf.String()
}

func (w *writer) collectText(node ast.Node, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Text(w.source))
		case *ast.String:
			buf.Write(t.Value)
		default:
			w.collectText(c, buf)
		}
	}
}

func (w *writer) list(n *ast.List) {
	idx := 0
	if n.Start > 0 {
		idx = int(n.Start) - 1
	}
	indent := strings.Repeat("  ", w.listDepth)

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		item, ok := child.(*ast.ListItem)
		if !ok {
			continue
		}
		if n.IsOrdered() {
			idx++
			fmt.Fprintf(&w.buf, "%s%d. ", indent, idx)
		} else {
			w.buf.WriteString(indent)
			w.buf.WriteString("• ")
		}
		w.listItem(item)
		w.buf.WriteByte('\n')
	}
	if w.listDepth == 0 {
		w.buf.WriteByte('\n')
	}
}

func (w *writer) listItem(item *ast.ListItem) {
	first := true
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			if !first {
				w.buf.WriteByte('\n')
				w.buf.WriteString(strings.Repeat("  ", w.listDepth+1))
			}
			w.inlines(n)
			first = false
		case *ast.List:
			w.buf.WriteByte('\n')
			w.listDepth++
			w.list(n)
			w.listDepth--
		default:
			w.block(c)
			first = false
		}
	}
}

// table renders each data row as a numbered block of "header: cell" lines,
// which survives narrow panels better than a grid.
func (w *writer) table(t *east.Table) {
	var headers []string
	var rows [][]string

	for child := t.FirstChild(); child != nil; child = child.NextSibling() {
		var cells []string
		for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, strings.TrimSpace(w.textContent(cell)))
		}
		switch child.(type) {
		case *east.TableHeader:
			headers = cells
		case *east.TableRow:
			rows = append(rows, cells)
		}
	}

	cols := len(headers)
	for _, row := range rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return
	}
	for len(headers) < cols {
		headers = append(headers, "")
	}
	for i := range headers {
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("Column %d", i+1)
		}
	}
	if len(rows) == 0 {
		rows = [][]string{make([]string, cols)}
	}

	for i, row := range rows {
		w.buf.WriteString(w.st.Bold.Render(fmt.Sprintf("%d.", i+1)))
		w.buf.WriteByte('\n')
		for j := 0; j < cols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			fmt.Fprintf(&w.buf, "• %s: %s\n", w.st.Bold.Render(headers[j]), cell)
		}
		if i < len(rows)-1 {
			w.buf.WriteByte('\n')
		}
	}
	w.buf.WriteByte('\n')
}
