package dashboard

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type headerModel struct {
	status Status
}

func newHeader(status Status) headerModel {
	return headerModel{status: status}
}

func (h *headerModel) update(status Status) {
	h.status = status
}

func (h headerModel) View(width int) string {
	left := Title.Render("WebSocket Gateway")

	dot := StatusDot(h.status.Reachable)
	statusLabel := StatusText(h.status.Reachable)
	right := fmt.Sprintf("%s %s", dot, statusLabel)

	info := fmt.Sprintf("  Port: %d   Stage: %s   Connections: %d   Uptime: %s",
		h.status.Port, h.status.Stage, h.status.Connections, h.formatUptime())

	headerStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Width(width - 2).
		Padding(0, 1)

	firstRow := lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		lipgloss.NewStyle().Width(width-lipgloss.Width(left)-lipgloss.Width(right)-6).Render(""),
		right,
	)

	return headerStyle.Render(firstRow + "\n" + Description.Render(info))
}

func (h headerModel) formatUptime() string {
	d := h.status.Uptime
	if !h.status.StartedAt.IsZero() {
		d = time.Since(h.status.StartedAt)
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
