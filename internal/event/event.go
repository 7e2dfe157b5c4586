// Package event shapes the payloads dispatched to backend integrations,
// matching the wire format of a managed WebSocket gateway's proxy
// integration in both lambda-proxy and http-headers modes.
package event

import (
	"strconv"
	"time"
)

// Type is the kind of lifecycle event being dispatched.
type Type string

const (
	TypeConnect    Type = "CONNECT"
	TypeDisconnect Type = "DISCONNECT"
	TypeMessage    Type = "MESSAGE"
)

// Identity carries the client-facing address/agent captured at connect time.
type Identity struct {
	SourceIP  string `json:"sourceIp"`
	UserAgent string `json:"userAgent,omitempty"`
}

// RequestContext is the envelope every lambda-proxy payload carries under
// "requestContext".
type RequestContext struct {
	RouteKey             string   `json:"routeKey"`
	EventType            Type     `json:"eventType"`
	ExtendedRequestID     string   `json:"extendedRequestId"`
	RequestID             string   `json:"requestId"`
	RequestTime            string   `json:"requestTime"`
	MessageDirection       string   `json:"messageDirection"`
	Stage                  string   `json:"stage"`
	ConnectedAt            int64    `json:"connectedAt"`
	RequestTimeEpoch       int64    `json:"requestTimeEpoch"`
	Identity               Identity `json:"identity"`
	DomainName             string   `json:"domainName"`
	ConnectionID           string   `json:"connectionId"`
	APIID                  string   `json:"apiId"`
	MessageID              string   `json:"messageId,omitempty"`
	DisconnectStatusCode   int      `json:"disconnectStatusCode,omitempty"`
	DisconnectReason       string   `json:"disconnectReason,omitempty"`
}

// LambdaProxyPayload is the full JSON body sent to the backend in
// lambda-proxy mode.
type LambdaProxyPayload struct {
	RequestContext        RequestContext      `json:"requestContext"`
	Headers               map[string]string   `json:"headers"`
	MultiValueHeaders      map[string][]string `json:"multiValueHeaders"`
	QueryStringParameters  map[string]string   `json:"queryStringParameters"`
	Body                   *string             `json:"body"`
	IsBase64Encoded        bool                `json:"isBase64Encoded"`
}

// ConnectionSnapshot is the connect-time data about a session needed to
// build any event for it.
type ConnectionSnapshot struct {
	ConnectionID string
	ConnectedAt  time.Time
	SourceIP     string
	UserAgent    string
	Headers      map[string]string
	Query        map[string]string
}

// DisconnectInfo carries the observed close code/reason for a DISCONNECT event.
type DisconnectInfo struct {
	Code   int
	Reason string
}

// BuildParams collects everything needed to build a single event payload.
type BuildParams struct {
	Snapshot       ConnectionSnapshot
	RouteKey       string
	EventType      Type
	Stage          string
	DomainName     string
	APIID          string
	Body           string // frame text for MESSAGE; ignored otherwise
	Disconnect     *DisconnectInfo
	RequestID      string // pre-generated; same value used for requestId and extendedRequestId
	MessageID      string // pre-generated; only set for MESSAGE
	Now            time.Time
}

// requestTimeFormat matches "02/Jan/2006:15:04:05 +0000" in UTC.
const requestTimeFormat = "02/Jan/2006:15:04:05 +0000"

// BuildLambdaProxy constructs the lambda-proxy mode JSON payload for a single event.
func BuildLambdaProxy(p BuildParams) LambdaProxyPayload {
	now := p.Now.UTC()

	rc := RequestContext{
		RouteKey:          p.RouteKey,
		EventType:         p.EventType,
		ExtendedRequestID: p.RequestID,
		RequestID:         p.RequestID,
		RequestTime:       now.Format(requestTimeFormat),
		MessageDirection:  "IN",
		Stage:             p.Stage,
		ConnectedAt:       p.Snapshot.ConnectedAt.UTC().UnixMilli(),
		RequestTimeEpoch:  now.UnixMilli(),
		Identity: Identity{
			SourceIP:  p.Snapshot.SourceIP,
			UserAgent: p.Snapshot.UserAgent,
		},
		DomainName:   p.DomainName,
		ConnectionID: p.Snapshot.ConnectionID,
		APIID:        p.APIID,
	}

	if p.EventType == TypeMessage {
		rc.MessageID = p.MessageID
	}
	if p.EventType == TypeDisconnect && p.Disconnect != nil {
		rc.DisconnectStatusCode = p.Disconnect.Code
		rc.DisconnectReason = p.Disconnect.Reason
	}

	headers := p.Snapshot.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	mv := make(map[string][]string, len(headers))
	for k, v := range headers {
		mv[k] = []string{v}
	}

	var query map[string]string
	if len(p.Snapshot.Query) > 0 {
		query = p.Snapshot.Query
	}

	var body *string
	if p.EventType == TypeMessage {
		b := p.Body
		body = &b
	}

	return LambdaProxyPayload{
		RequestContext:        rc,
		Headers:               headers,
		MultiValueHeaders:     mv,
		QueryStringParameters: query,
		Body:                  body,
		IsBase64Encoded:       false,
	}
}

// HTTPHeadersRequest is what the dispatcher needs to build an http-headers
// mode outbound request: a body and a header set to attach.
type HTTPHeadersRequest struct {
	Body    string
	Headers map[string]string
	Query   map[string]string
}

// BuildHTTPHeaders constructs the http-headers mode request shape for a single event.
func BuildHTTPHeaders(p BuildParams) HTTPHeadersRequest {
	headers := make(map[string]string, len(p.Snapshot.Headers)+4)
	for k, v := range p.Snapshot.Headers {
		headers[k] = v
	}
	headers["connectionId"] = p.Snapshot.ConnectionID
	headers["x-event-type"] = string(p.EventType)
	headers["x-route-key"] = p.RouteKey

	if p.EventType == TypeDisconnect && p.Disconnect != nil {
		headers["x-disconnect-status-code"] = strconv.Itoa(p.Disconnect.Code)
		headers["x-disconnect-reason"] = p.Disconnect.Reason
	}

	body := ""
	if p.EventType == TypeMessage {
		body = p.Body
	}

	return HTTPHeadersRequest{
		Body:    body,
		Headers: headers,
		Query:   p.Snapshot.Query,
	}
}
