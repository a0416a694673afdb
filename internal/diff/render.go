package diff

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	modifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

// Render formats the diff for a terminal. Colours are dropped when the
// output does not support them.
func Render(d PlanDiff) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Plan diff"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(d.Summary()))
	b.WriteString("\n")

	if d.IsEmpty() {
		b.WriteString("\nno changes\n")
		return b.String()
	}

	for _, t := range d.Added {
		b.WriteString(addedStyle.Render(fmt.Sprintf("+ %s %s", t.ID, t.Title)))
		b.WriteString("\n")
	}
	for _, t := range d.Removed {
		b.WriteString(removedStyle.Render(fmt.Sprintf("- %s %s", t.ID, t.Title)))
		b.WriteString("\n")
	}
	for _, m := range d.Modified {
		b.WriteString(modifiedStyle.Render("~ " + m.ID))
		b.WriteString("\n")
		for _, name := range MonitoredFields() {
			c, ok := m.Changes[name]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "    %s: %s -> %s\n", name, show(c.Old), show(c.New))
		}
	}
	return b.String()
}

func show(v any) string {
	switch x := v.(type) {
	case nil:
		return "∅"
	case string:
		if x == "" {
			return `""`
		}
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
