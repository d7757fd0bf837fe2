package export

import (
	"fmt"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
)

// Markdown renders the itinerary as a Markdown document.
func Markdown(it *itinerary.Itinerary) string {
	var sb strings.Builder

	title := it.Destination
	if title == "" {
		title = "Itinerary"
	}
	fmt.Fprintf(&sb, "# %s\n\n", escape(title))
	if it.HeroImage != nil && it.HeroImage.URL != "" {
		fmt.Fprintf(&sb, "![%s](%s)\n", escape(title), it.HeroImage.URL)
		if it.HeroImage.Photographer != "" {
			credit := escape(it.HeroImage.Photographer)
			if it.HeroImage.PhotographerURL != "" {
				credit = fmt.Sprintf("[%s](%s)", credit, it.HeroImage.PhotographerURL)
			}
			fmt.Fprintf(&sb, "\n*Photo: %s*\n", credit)
		}
		sb.WriteString("\n")
	}
	if it.Description != "" {
		sb.WriteString(it.Description)
		sb.WriteString("\n\n")
	}

	for _, d := range it.Days {
		fmt.Fprintf(&sb, "## Day %d", d.Day)
		if d.Title != "" {
			fmt.Fprintf(&sb, ": %s", escape(d.Title))
		}
		sb.WriteString("\n\n")

		if d.Transit != nil {
			sb.WriteString(transitLine(d.Transit))
			sb.WriteString("\n\n")
		}

		if len(d.Activities) > 0 {
			sb.WriteString("| Time | Activity | Notes |\n")
			sb.WriteString("|------|----------|-------|\n")
			for _, a := range d.Activities {
				name := escape(a.Name)
				if a.Source == itinerary.SourceCorrected {
					name += " ✓"
				}
				fmt.Fprintf(&sb, "| %s | %s | %s |\n", cell(a.Time), cell(name), cell(a.Description))
			}
			sb.WriteString("\n")
		}
	}

	if len(it.References) > 0 {
		sb.WriteString("## References\n\n")
		for i, r := range it.References {
			if r.URL != "" {
				fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, escape(r.Title), r.URL)
			} else {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, escape(r.Title))
			}
		}
		sb.WriteString("\n")
	}

	if it.Model != "" || it.Strategy != "" {
		fmt.Fprintf(&sb, "---\n\n*Generated with %s", orDash(it.Model))
		if it.Strategy != "" {
			fmt.Fprintf(&sb, " (%s)", it.Strategy)
		}
		sb.WriteString("*\n")
	}
	return sb.String()
}

func transitLine(t *itinerary.Transit) string {
	line := fmt.Sprintf("**Transit (%s):** %s %s → %s %s",
		t.Mode,
		escape(orDash(t.Departure.Place)), t.Departure.Time,
		escape(orDash(t.Arrival.Place)), t.Arrival.Time)
	line = strings.ReplaceAll(line, "  ", " ")
	if t.Duration != "" {
		line += ", about " + t.Duration
	}
	if t.Origin == itinerary.TransitFromInferred {
		line += " *(estimated)*"
	}
	return line
}

var mdEscaper = strings.NewReplacer(`*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

func escape(s string) string {
	return mdEscaper.Replace(s)
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
