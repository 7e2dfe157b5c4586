// Package route selects a backend route key for an inbound WebSocket
// message, either always returning "$default" or walking a fixed
// "$request.body.<path>" expression against the message's JSON body.
package route

import (
	"encoding/json"
	"strings"
)

const defaultRouteKey = "$default"
const expressionPrefix = "$request.body."

// Selector chooses a route key for inbound message text.
type Selector struct {
	path  []string // parsed dot-path, nil if no expression configured
	table map[string]string
}

// NewSelector builds a Selector from a configured expression (possibly
// empty, meaning "always $default") and the integration table used to
// validate candidate route keys.
func NewSelector(expression string, table map[string]string) *Selector {
	s := &Selector{table: table}
	if expression == "" {
		return s
	}
	trimmed := strings.TrimPrefix(expression, expressionPrefix)
	if trimmed == expression || trimmed == "" {
		// Malformed expression (missing prefix or empty path); behave as unconfigured.
		return s
	}
	s.path = strings.Split(trimmed, ".")
	return s
}

// Select returns the route key for the given message text.
func (s *Selector) Select(message string) string {
	if s.path == nil {
		return defaultRouteKey
	}

	var decoded any
	if err := json.Unmarshal([]byte(message), &decoded); err != nil {
		return defaultRouteKey
	}

	cur := decoded
	for _, member := range s.path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return defaultRouteKey
		}
		v, present := obj[member]
		if !present {
			return defaultRouteKey
		}
		cur = v
	}

	terminal, ok := cur.(string)
	if !ok {
		return defaultRouteKey
	}
	if _, present := s.table[terminal]; !present {
		return defaultRouteKey
	}
	return terminal
}
