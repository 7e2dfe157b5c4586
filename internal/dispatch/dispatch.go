// Package dispatch delivers gateway lifecycle events to backend
// integrations over HTTP, classifying the outcome so the Session Manager
// can decide what to do next.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/localstackws/wsgateway/internal/config"
	"github.com/localstackws/wsgateway/internal/event"
)

// Outcome classifies the result of an attempted dispatch.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	Unreachable
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// defaultTimeout bounds every outbound backend request so a slow backend
// cannot wedge session reaping.
const defaultTimeout = 5 * time.Second

// Dispatcher sends events to the configured integration table.
type Dispatcher struct {
	mode   config.IntegrationMode
	table  map[string]string
	stage  string
	domain string
	apiID  string
	client *http.Client
	log    *slog.Logger
}

// New constructs a Dispatcher from gateway configuration.
func New(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mode:   cfg.Integrations.Mode,
		table:  cfg.Integrations.Table,
		stage:  cfg.Server.Stage,
		domain: cfg.Server.DomainName,
		apiID:  cfg.Server.APIID,
		client: &http.Client{Timeout: defaultTimeout},
		log:    logger.With("component", "dispatcher"),
	}
}

// Params describes a single dispatch attempt.
type Params struct {
	RouteKey   string
	Snapshot   event.ConnectionSnapshot
	EventType  event.Type
	Body       string
	Disconnect *event.DisconnectInfo
	RequestID  string
	MessageID  string
}

// Dispatch resolves the route key to a URI and delivers the event, blocking
// until the backend responds, a transport error occurs, or the bounded
// timeout elapses.
func (d *Dispatcher) Dispatch(ctx context.Context, p Params) Outcome {
	uri, ok := d.table[p.RouteKey]
	if !ok {
		d.log.Warn("no integration bound for route key", "routeKey", p.RouteKey)
		return Unreachable
	}

	buildParams := event.BuildParams{
		Snapshot:   p.Snapshot,
		RouteKey:   p.RouteKey,
		EventType:  p.EventType,
		Stage:      d.stage,
		DomainName: d.domain,
		APIID:      d.apiID,
		Body:       p.Body,
		Disconnect: p.Disconnect,
		RequestID:  p.RequestID,
		MessageID:  p.MessageID,
		Now:        time.Now(),
	}

	var req *http.Request
	var err error

	switch d.mode {
	case config.ModeHTTPHeaders:
		req, err = d.buildHTTPHeadersRequest(ctx, uri, buildParams)
	default:
		req, err = d.buildLambdaProxyRequest(ctx, uri, buildParams)
	}
	if err != nil {
		d.log.Error("build request failed", "routeKey", p.RouteKey, "err", err)
		return Unreachable
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("backend unreachable", "routeKey", p.RouteKey, "uri", uri, "err", err)
		return Unreachable
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Accepted
	}
	d.log.Warn("backend rejected event", "routeKey", p.RouteKey, "uri", uri, "status", resp.StatusCode)
	return Rejected
}

func (d *Dispatcher) buildLambdaProxyRequest(ctx context.Context, uri string, p event.BuildParams) (*http.Request, error) {
	payload := event.BuildLambdaProxy(p)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (d *Dispatcher) buildHTTPHeadersRequest(ctx context.Context, uri string, p event.BuildParams) (*http.Request, error) {
	built := event.BuildHTTPHeaders(p)

	target := uri
	if len(built.Query) > 0 {
		u, err := url.Parse(uri)
		if err != nil {
			return nil, fmt.Errorf("parse integration uri: %w", err)
		}
		q := u.Query()
		for k, v := range built.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader([]byte(built.Body)))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	contentType := "text/plain; charset=utf-8"
	if json.Valid([]byte(built.Body)) {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range built.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
