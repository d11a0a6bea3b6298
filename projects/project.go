// Package projects serves the portfolio's project directory: a Notion
// database query normalized to a fixed shape, the HTTP handler for
// GET /api/projects, and a read client for it.
package projects

import (
	"github.com/tidwall/gjson"
)

// Project is one normalized portfolio entry.
type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageUrl"`
	TechStack   []string `json:"techStack"`
	GithubURL   string   `json:"githubUrl"`
	LiveURL     string   `json:"liveUrl"`
	Category    string   `json:"category"`
	Featured    bool     `json:"featured"`
	Year        int      `json:"year"`
}

// Normalize maps one Notion page object to a Project. Missing properties
// fall back to zero values and TechStack is never nil.
func Normalize(page gjson.Result) Project {
	props := page.Get("properties")

	p := Project{
		ID:          page.Get("id").String(),
		Title:       props.Get("Name.title.0.plain_text").String(),
		Description: props.Get("Description.rich_text.0.plain_text").String(),
		ImageURL:    coverURL(page.Get("cover")),
		TechStack:   []string{},
		GithubURL:   props.Get("Github.url").String(),
		LiveURL:     props.Get("LiveLink.url").String(),
		Category:    props.Get("Category.select.name").String(),
		Featured:    props.Get("Featured.checkbox").Bool(),
		Year:        int(props.Get("Year.number").Int()),
	}
	if p.ImageURL == "" {
		p.ImageURL = props.Get("Image.files.0.name").String()
	}
	props.Get("Tags.multi_select.#.name").ForEach(func(_, v gjson.Result) bool {
		if name := v.String(); name != "" {
			p.TechStack = append(p.TechStack, name)
		}
		return true
	})
	return p
}

func coverURL(cover gjson.Result) string {
	switch cover.Get("type").String() {
	case "external":
		return cover.Get("external.url").String()
	case "file":
		return cover.Get("file.url").String()
	}
	return ""
}

// NormalizeAll maps every page in a query "results" array.
func NormalizeAll(results gjson.Result) []Project {
	out := []Project{}
	results.ForEach(func(_, page gjson.Result) bool {
		out = append(out, Normalize(page))
		return true
	})
	return out
}

// FilterFeatured returns the featured projects, preserving order.
func FilterFeatured(list []Project) []Project {
	out := make([]Project, 0, len(list))
	for _, p := range list {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}
