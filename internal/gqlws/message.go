// Package gqlws speaks GraphQL subscriptions over WebSocket.
//
// Both sub-protocols in the wild are supported: the legacy "graphql-ws"
// (start / data / stop, server keep-alive "ka") and "graphql-transport-ws"
// (subscribe / next / complete, ping / pong).
package gqlws

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	ProtocolLegacy    = "graphql-ws"
	ProtocolTransport = "graphql-transport-ws"
)

const (
	TypeConnectionInit      = "connection_init"
	TypeConnectionAck       = "connection_ack"
	TypeConnectionError     = "connection_error"
	TypeConnectionTerminate = "connection_terminate"
	TypeKeepAlive           = "ka"
	TypePing                = "ping"
	TypePong                = "pong"
	TypeStart               = "start"
	TypeSubscribe           = "subscribe"
	TypeStop                = "stop"
	TypeData                = "data"
	TypeNext                = "next"
	TypeError               = "error"
	TypeComplete            = "complete"
)

var (
	ErrConnect      = errors.New("connection failed")
	ErrSubscription = errors.New("subscription error")
	ErrTimeout      = errors.New("timeout")
)

type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type InitPayload struct {
	Authorization string `json:"Authorization,omitempty"`
}

type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Result is the payload of data/next frames.
type Result struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message string `json:"message"`
}

func newMessage(id, typ string, payload any) (Message, error) {
	msg := Message{ID: id, Type: typ}
	if payload == nil {
		return msg, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = b
	return msg, nil
}

// startType is the client frame that opens a subscription.
func startType(protocol string) string {
	if protocol == ProtocolTransport {
		return TypeSubscribe
	}
	return TypeStart
}

// dataType is the server frame that carries a result.
func dataType(protocol string) string {
	if protocol == ProtocolTransport {
		return TypeNext
	}
	return TypeData
}

// RootField returns the first selected field of a subscription document,
// e.g. "orderCreated" for `subscription { orderCreated { id } }`.
// An alias resolves to the aliased field.
func RootField(query string) string {
	q := stripComments(query)
	open := selectionStart(q)
	if open < 0 {
		return ""
	}
	if op, _ := readName(q[:open]); op != "" && op != "subscription" {
		return ""
	}

	rest := q[open+1:]
	name, rest := readName(rest)
	if next := strings.TrimLeft(rest, " \t\r\n"); strings.HasPrefix(next, ":") {
		name, _ = readName(next[1:])
	}
	return name
}

// selectionStart finds the opening brace of the selection set, skipping
// object literals in variable defaults.
func selectionStart(q string) int {
	depth := 0
	for i, r := range q {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '{':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func readName(s string) (string, string) {
	s = strings.TrimLeft(s, " \t\r\n,")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if end < 0 {
		end = len(s)
	}
	return s[:end], s[end:]
}

func stripComments(q string) string {
	var b strings.Builder
	for _, line := range strings.Split(q, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
