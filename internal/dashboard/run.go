package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/localstackws/wsgateway/internal/session"
)

const pollInterval = 2 * time.Second

type healthResponse struct {
	Connections int    `json:"connections"`
	Uptime      int    `json:"uptime"`
	Port        int    `json:"port"`
	Stage       string `json:"stage"`
}

// Attach polls a running gateway's management HTTP API and displays the
// dashboard TUI. baseURL is the gateway's own address, e.g.
// "http://localhost:8080". Returns once the user quits.
func Attach(baseURL string) error {
	client := &http.Client{Timeout: 3 * time.Second}

	status, sessions, err := fetchState(client, baseURL)
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}

	m := NewModel(status, sessions)
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pollLoop(ctx, client, baseURL, p)

	_, err = p.Run()
	return err
}

func pollLoop(ctx context.Context, client *http.Client, baseURL string, p *tea.Program) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, sessions, err := fetchState(client, baseURL)
			if err != nil {
				p.Send(StatusUpdateMsg{Status: Status{Reachable: false}})
				continue
			}
			p.Send(StatusUpdateMsg{Status: status})
			p.Send(SessionsUpdateMsg{Sessions: sessions})
		}
	}
}

func fetchState(client *http.Client, baseURL string) (Status, []SessionRow, error) {
	var health healthResponse
	if err := getJSON(client, baseURL+"/health", &health); err != nil {
		return Status{}, nil, err
	}

	var conns []sessionInfoJSON
	if err := getJSON(client, baseURL+"/@connections", &conns); err != nil {
		return Status{}, nil, err
	}

	status := Status{
		Reachable:   true,
		Port:        health.Port,
		Stage:       health.Stage,
		Connections: health.Connections,
		Uptime:      time.Duration(health.Uptime) * time.Second,
	}

	rows := make([]SessionRow, 0, len(conns))
	for _, c := range conns {
		rows = append(rows, SessionRow{
			ConnectionID: c.ConnectionID,
			SourceIP:     c.SourceIP,
			ConnectedAt:  c.ConnectedAt,
			LastActiveAt: c.LastActiveAt,
		})
	}

	return status, rows, nil
}

type sessionInfoJSON struct {
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	SourceIP     string    `json:"sourceIp"`
}

func getJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// inProcessSource is implemented by *session.Manager, letting the dashboard
// poll a gateway running in the same process without going over HTTP.
type inProcessSource interface {
	Count() int
	Uptime() time.Duration
	List() []session.Info
}

// RunInline starts the dashboard against an in-process gateway, reading
// state directly instead of over HTTP, and streaming log records from a
// RingHandler installed on the gateway's logger.
func RunInline(port int, stage string, src inProcessSource, logs *RingHandler) error {
	initial := Status{
		Reachable:   true,
		Port:        port,
		Stage:       stage,
		Connections: src.Count(),
		Uptime:      src.Uptime(),
	}
	m := NewModel(initial, toRows(src.List()))
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Send(StatusUpdateMsg{Status: Status{
					Reachable:   true,
					Port:        port,
					Stage:       stage,
					Connections: src.Count(),
					Uptime:      src.Uptime(),
				}})
				p.Send(SessionsUpdateMsg{Sessions: toRows(src.List())})
			}
		}
	}()

	if logs != nil {
		go func() {
			for evt := range logs.Events() {
				p.Send(evt)
			}
		}()
	}

	_, err := p.Run()
	return err
}

func toRows(items []session.Info) []SessionRow {
	rows := make([]SessionRow, 0, len(items))
	for _, it := range items {
		rows = append(rows, SessionRow{
			ConnectionID: it.ConnectionID,
			SourceIP:     it.SourceIP,
			ConnectedAt:  it.ConnectedAt,
			LastActiveAt: it.LastActiveAt,
		})
	}
	return rows
}
