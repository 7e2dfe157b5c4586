package dashboard

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sessionsModel struct {
	items  []SessionRow
	cursor int
}

func newSessions(sessions []SessionRow) sessionsModel {
	return sessionsModel{items: sessions}
}

func (s *sessionsModel) update(sessions []SessionRow) {
	s.items = sessions
	if s.cursor >= len(s.items) {
		s.cursor = max(0, len(s.items)-1)
	}
}

func (s sessionsModel) Update(msg tea.Msg) (sessionsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			if s.cursor < len(s.items)-1 {
				s.cursor++
			}
		case "k", "up":
			if s.cursor > 0 {
				s.cursor--
			}
		case "G":
			s.cursor = max(0, len(s.items)-1)
		case "g":
			s.cursor = 0
		}
	}
	return s, nil
}

func (s sessionsModel) View() string {
	if len(s.items) == 0 {
		return Dimmed.Render("  No active connections")
	}

	headerStyle := lipgloss.NewStyle().Foreground(ColorSubtle).Bold(true)
	header := fmt.Sprintf("  %-14s %-16s %-10s %s",
		headerStyle.Render("CONNECTION ID"),
		headerStyle.Render("SOURCE IP"),
		headerStyle.Render("AGE"),
		headerStyle.Render("LAST ACTIVE"),
	)

	rows := header + "\n"
	for i, sess := range s.items {
		cursor := "  "
		style := lipgloss.NewStyle()
		if i == s.cursor {
			cursor = Selected.Render("> ")
			style = style.Bold(true)
		}

		shortID := sess.ConnectionID
		if len(shortID) > 12 {
			shortID = shortID[:12]
		}

		row := fmt.Sprintf("%-14s %-16s %-10s %s",
			style.Render(shortID),
			style.Render(sess.SourceIP),
			style.Render(formatAge(sess.ConnectedAt)),
			style.Render(formatAge(sess.LastActiveAt)+" ago"),
		)
		rows += cursor + row + "\n"
	}

	return rows
}

func (s sessionsModel) height() int {
	return min(len(s.items)+2, 12) // header + rows, max 12
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
