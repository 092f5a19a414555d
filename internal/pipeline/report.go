package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/civicgraph/orgscope/internal/model"
)

// fieldTitles maps scalar field keys to report headings.
var fieldTitles = map[string]string{
	"description":   "Description",
	"ideology":      "Ideology",
	"founding_date": "Founded",
	"headquarters":  "Headquarters",
	"website":       "Website",
}

// RenderReport formats a stored profile as a Markdown research report:
// the scalar fields with their source citations, then leadership, then
// recent coverage, then the full source list.
func RenderReport(p *model.OrganizationProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "_Profile updated %s_\n\n", p.UpdatedAt.UTC().Format("2006-01-02"))

	b.WriteString("## Overview\n\n")
	empty := true
	for _, key := range model.ScalarFields() {
		value := p.Field(key)
		if value == "" {
			continue
		}
		empty = false
		fmt.Fprintf(&b, "**%s:** %s", fieldTitles[key], value)
		if src := p.Provenance[key]; src != "" {
			fmt.Fprintf(&b, " ([source](%s))", src)
		}
		b.WriteString("\n\n")
	}
	if empty {
		b.WriteString("_No organization details on record._\n\n")
	}

	if len(p.Leaders) > 0 {
		b.WriteString("## Leadership\n\n")
		for _, l := range p.Leaders {
			title := l.Name
			if l.Position != "" {
				title += " — " + l.Position
			}
			fmt.Fprintf(&b, "### %s\n\n", title)
			for _, pair := range []struct{ label, value string }{
				{"Background", l.Background},
				{"Education", l.Education},
				{"Political history", l.PoliticalHistory},
				{"Achievements", l.Achievements},
			} {
				if pair.value != "" {
					fmt.Fprintf(&b, "- **%s:** %s\n", pair.label, pair.value)
				}
			}
			if l.SourceURL != "" {
				fmt.Fprintf(&b, "- **Source:** %s\n", l.SourceURL)
			}
			b.WriteString("\n")
		}
	}

	if len(p.News) > 0 {
		b.WriteString("## Recent News\n\n")
		for _, n := range p.News {
			fmt.Fprintf(&b, "- [%s](%s)", n.Title, n.SourceURL)
			if n.PublishedAt != nil {
				fmt.Fprintf(&b, " (%s)", n.PublishedAt.UTC().Format("2006-01-02"))
			}
			if n.Summary != "" {
				fmt.Fprintf(&b, " — %s", n.Summary)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if sources := collectSources(p); len(sources) > 0 {
		b.WriteString("## Sources\n\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// collectSources gathers every distinct URL the profile cites, sorted.
func collectSources(p *model.OrganizationProfile) []string {
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" {
			seen[u] = true
		}
	}
	for _, u := range p.Provenance {
		add(u)
	}
	for _, l := range p.Leaders {
		add(l.SourceURL)
	}
	for _, n := range p.News {
		add(n.SourceURL)
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
