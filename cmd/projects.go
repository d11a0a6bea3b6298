package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/fbarrios/folio/projects"
)

var (
	projectsFeatured bool
	projectsJSON     bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the portfolio projects served by the relay",
	RunE:  runProjects,
}

func init() {
	projectsCmd.Flags().StringVar(&relayURLFlag, "relay-url", "", "Relay base URL (overrides client.relayUrl)")
	projectsCmd.Flags().BoolVar(&projectsFeatured, "featured", false, "Only featured projects")
	projectsCmd.Flags().BoolVar(&projectsJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	list, err := projects.NewClient(resolveRelayURL(cfg)).Fetch(ctx)
	if err != nil {
		return err
	}
	if projectsFeatured {
		list = projects.FilterFeatured(list)
	}

	out := cmd.OutOrStdout()
	if projectsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No projects.")
		return nil
	}
	fmt.Fprintln(out, projectTable(list))
	return nil
}

func projectTable(list []projects.Project) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Title", "Category", "Year", "Stack", "Links").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, p := range list {
		title := p.Title
		if p.Featured {
			title += " ★"
		}
		year := ""
		if p.Year > 0 {
			year = strconv.Itoa(p.Year)
		}
		var links []string
		for _, u := range []string{p.LiveURL, p.GithubURL} {
			if u != "" {
				links = append(links, u)
			}
		}
		t.Row(title, p.Category, year, strings.Join(p.TechStack, ", "), strings.Join(links, "\n"))
	}
	return t.Render()
}
