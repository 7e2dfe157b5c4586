// Package wizard provides an interactive setup wizard for the gateway's
// config file.
package wizard

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/localstackws/wsgateway/internal/config"
	"github.com/localstackws/wsgateway/internal/prompt"
)

// Wizard drives the interactive gateway config setup.
type Wizard struct {
	p *prompt.Prompter
}

// New creates a Wizard using the given Prompter.
func New(p *prompt.Prompter) *Wizard {
	return &Wizard{p: p}
}

// Run executes the interactive wizard and writes the config file.
func (w *Wizard) Run(outputPath string) error {
	_, _ = fmt.Fprintln(w.p.Out)
	_, _ = fmt.Fprintln(w.p.Out, "  WebSocket Gateway — Configuration Wizard")
	_, _ = fmt.Fprintln(w.p.Out, strings.Repeat("─", 42))
	_, _ = fmt.Fprintln(w.p.Out)

	cfg := &config.Config{}

	_, _ = fmt.Fprintln(w.p.Out, "Server")
	cfg.Server.Port = w.p.AskInt("  Listen port", 8080)
	cfg.Server.Stage = w.p.Ask("  Stage name", "dev")
	cfg.Server.APIID = w.p.Ask("  API id", "localwsapi")
	_, _ = fmt.Fprintln(w.p.Out)

	_, _ = fmt.Fprintln(w.p.Out, "Backend Integration")
	mode := w.p.Choose("  Dispatch mode", []string{string(config.ModeLambdaProxy), string(config.ModeHTTPHeaders)}, 0)
	cfg.Integrations.Mode = config.IntegrationMode(mode)

	cfg.Integrations.Table = map[string]string{}
	connectURI := w.p.Ask("  Backend URI for $connect", "http://localhost:3000/connect")
	cfg.Integrations.Table["$connect"] = connectURI

	if w.p.Confirm("  Add a $disconnect route", true) {
		cfg.Integrations.Table["$disconnect"] = w.p.Ask("  Backend URI for $disconnect", connectURI)
	}

	defaultURI := w.p.Ask("  Backend URI for $default (unmatched messages)", connectURI)
	cfg.Integrations.Table["$default"] = defaultURI

	if w.p.Confirm("  Route messages by a field in the message body", false) {
		field := w.p.Ask("  Field name (e.g. action)", "action")
		cfg.Integrations.RouteSelectExpression = "$request.body." + field

		for {
			routeKey := w.p.Ask("  Route key to add (blank to stop)", "")
			if routeKey == "" {
				break
			}
			cfg.Integrations.Table[routeKey] = w.p.Ask("  Backend URI for "+routeKey, connectURI)
		}
	}
	_, _ = fmt.Fprintln(w.p.Out)

	_, _ = fmt.Fprintln(w.p.Out, "Session Timeouts")
	idleMinutes := w.p.AskInt("  Idle timeout (minutes, resets on activity)", 10)
	hardMinutes := w.p.AskInt("  Hard timeout (minutes, never resets)", 120)
	cfg.Session.IdleTimeout.Duration = time.Duration(idleMinutes) * time.Minute
	cfg.Session.HardTimeout.Duration = time.Duration(hardMinutes) * time.Minute
	_, _ = fmt.Fprintln(w.p.Out)

	_, _ = fmt.Fprintln(w.p.Out, "Logging")
	cfg.Logging.Level = w.p.Choose("  Log level", []string{"info", "debug", "warn", "error"}, 0)
	cfg.Logging.Format = w.p.Choose("  Log format", []string{"json", "text"}, 0)
	_, _ = fmt.Fprintln(w.p.Out)

	if outputPath == "" {
		outputPath = w.p.Ask("Config file output path", "./wsgateway.json")
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(outputPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	_, _ = fmt.Fprintf(w.p.Out, "\n  Config written to %s\n", outputPath)
	_, _ = fmt.Fprintln(w.p.Out)
	_, _ = fmt.Fprintln(w.p.Out, "  Next steps:")
	_, _ = fmt.Fprintf(w.p.Out, "    wsgatewayd run %s\n\n", outputPath)

	return nil
}
