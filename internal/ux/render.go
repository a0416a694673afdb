package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/pmteam/internal/conversation"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	agentStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	systemStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderMessage formats one transcript entry.
func RenderMessage(m conversation.Message) string {
	var label string
	switch m.Sender {
	case conversation.SenderUser:
		label = userStyle.Render("you")
	case conversation.SenderAgent:
		label = agentStyle.Render("pm-team")
	default:
		label = systemStyle.Render(string(m.Sender))
	}

	header := label + " " + mutedStyle.Render(m.Timestamp)
	if p := m.Provenance; p != nil {
		tag := "via " + p.Tier
		if p.Degraded {
			header += " " + degradedStyle.Render(tag+", degraded")
		} else {
			header += " " + mutedStyle.Render(tag)
		}
	}
	return header + "\n" + indent(m.Content, "  ")
}

// RenderConversation formats a transcript, oldest first.
func RenderConversation(c conversation.Conversation) string {
	if len(c) == 0 {
		return mutedStyle.Render("no messages yet")
	}
	parts := make([]string, len(c))
	for i, m := range c {
		parts[i] = RenderMessage(m)
	}
	return strings.Join(parts, "\n\n")
}

// Table renders rows under a bold header row.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}

// Muted renders secondary text.
func Muted(format string, args ...any) string {
	return mutedStyle.Render(fmt.Sprintf(format, args...))
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
