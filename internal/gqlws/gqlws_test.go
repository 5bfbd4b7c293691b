package gqlws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bbdist/internal/events"
	"bbdist/internal/token"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestServer(t *testing.T) (*httptest.Server, *events.Hub, *token.Issuer) {
	t.Helper()
	iss, err := token.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	hub := events.NewHub()
	h := NewHandler(iss, hub, events.Topics)
	h.KeepAlive = 20 * time.Millisecond
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, hub, iss
}

func waitForSubscriber(t *testing.T, hub *events.Hub, topic string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber on %s", topic)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRootField(t *testing.T) {
	cases := map[string]string{
		"subscription { orderCreated { id number } }":                     "orderCreated",
		"subscription OnStatus($id: ID) {\n  orderStatusChanged { id } }": "orderStatusChanged",
		"{ shipmentCreated { id } }":                                      "shipmentCreated",
		"subscription { latest: movementRecorded { id } }":                "movementRecorded",
		"# comment {\nsubscription { orderCreated }":                      "orderCreated",
		"subscription($id: ID!) { orderStatusChanged { id } }":            "orderStatusChanged",
		"subscription @live { shipmentStatusChanged { id } }":             "shipmentStatusChanged",
		"subscription($f: F = {a: 1}) { movementRecorded { id } }":        "movementRecorded",
		"subscriptions { orderCreated { id } }":                           "",
		"query { orders { id } }":                                         "",
		"subscription":                                                    "",
	}
	for q, want := range cases {
		if got := RootField(q); got != want {
			t.Fatalf("RootField(%q) = %q, want %q", q, got, want)
		}
	}
}

func TestWatchDeliversHubEvents(t *testing.T) {
	for _, protocol := range []string{ProtocolLegacy, ProtocolTransport} {
		t.Run(protocol, func(t *testing.T) {
			srv, hub, iss := newTestServer(t)
			tok, err := iss.Issue("tech-1", []string{"DISTRIBUTION_TECH"})
			if err != nil {
				t.Fatalf("issue: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			got := make(chan Event, 1)
			done := make(chan error, 1)
			go func() {
				done <- Watch(ctx, wsURL(srv), Options{Token: tok, Protocol: protocol}, Subscription{
					ID:      "sub-1",
					Request: Request{Query: "subscription { orderCreated { id number } }"},
					Once:    true,
				}, func(ev Event) error {
					got <- ev
					return nil
				})
			}()

			waitForSubscriber(t, hub, events.OrderCreated)
			hub.Publish(events.New(events.OrderCreated, map[string]string{"number": "ORD-7"}))

			if err := <-done; err != nil {
				t.Fatalf("watch: %v", err)
			}
			ev := <-got
			if ev.ID != "sub-1" || ev.Type != dataType(protocol) {
				t.Fatalf("unexpected event: %+v", ev)
			}
			res, err := ev.Result()
			if err != nil {
				t.Fatalf("result: %v", err)
			}
			var data struct {
				OrderCreated struct {
					Number string `json:"number"`
				} `json:"orderCreated"`
			}
			if err := json.Unmarshal(res.Data, &data); err != nil {
				t.Fatalf("data: %v", err)
			}
			if data.OrderCreated.Number != "ORD-7" {
				t.Fatalf("unexpected data: %s", res.Data)
			}
		})
	}
}

func TestDialRejectsBadHeaderToken(t *testing.T) {
	srv, _, _ := newTestServer(t)
	_, err := Dial(context.Background(), wsURL(srv), Options{Token: "not-a-jwt"})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestDialWithoutTokenIsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)
	_, err := Dial(context.Background(), wsURL(srv), Options{})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestWatchUnknownField(t *testing.T) {
	srv, _, iss := newTestServer(t)
	tok, _ := iss.Issue("tech-1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Watch(ctx, wsURL(srv), Options{Token: tok}, Subscription{
		Request: Request{Query: "subscription { donationCreated { id } }"},
	}, func(Event) error { return nil })
	if !errors.Is(err, ErrSubscription) {
		t.Fatalf("expected ErrSubscription, got %v", err)
	}
}

func TestWatchTimesOut(t *testing.T) {
	srv, _, iss := newTestServer(t)
	tok, _ := iss.Issue("tech-1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := Watch(ctx, wsURL(srv), Options{Token: tok}, Subscription{
		Request: Request{Query: "subscription { shipmentCreated { id } }"},
	}, func(Event) error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// scripted server checks the exact frames the client sends.
func TestClientHandshakeFrames(t *testing.T) {
	frames := make(chan Message, 4)
	upgrader := websocket.Upgrader{Subprotocols: []string{ProtocolLegacy}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var init Message
		if err := conn.ReadJSON(&init); err != nil {
			return
		}
		frames <- init
		_ = conn.WriteJSON(Message{Type: TypeKeepAlive})
		_ = conn.WriteJSON(Message{Type: TypeConnectionAck})

		var start Message
		if err := conn.ReadJSON(&start); err != nil {
			return
		}
		frames <- start
		_ = conn.WriteJSON(Message{Type: TypeKeepAlive})
		_ = conn.WriteJSON(Message{ID: start.ID, Type: TypeData, Payload: json.RawMessage(`{"data":{"orderCreated":{"id":"o1"}}}`)})
		_ = conn.WriteJSON(Message{ID: start.ID, Type: TypeComplete})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	var seen int
	err := Watch(context.Background(), wsURL(srv), Options{Token: "tok-123"}, Subscription{
		ID:      "42",
		Request: Request{Query: "subscription { orderCreated { id } }"},
	}, func(ev Event) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected one data frame, got %d", seen)
	}

	init := <-frames
	if init.Type != TypeConnectionInit || string(init.Payload) != `{"Authorization":"Bearer tok-123"}` {
		t.Fatalf("unexpected init frame: %+v %s", init, init.Payload)
	}
	start := <-frames
	if start.Type != TypeStart || start.ID != "42" || !strings.Contains(string(start.Payload), `"query":"subscription { orderCreated { id } }"`) {
		t.Fatalf("unexpected start frame: %+v %s", start, start.Payload)
	}
}

func dialRaw(t *testing.T, srv *httptest.Server, protocol string) *websocket.Conn {
	t.Helper()
	d := websocket.Dialer{Subprotocols: []string{protocol}, HandshakeTimeout: 2 * time.Second}
	conn, _, err := d.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, id, typ, payload string) {
	t.Helper()
	msg := Message{ID: id, Type: typ}
	if payload != "" {
		msg.Payload = json.RawMessage(payload)
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) (Message, error) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	err := conn.ReadJSON(&msg)
	return msg, err
}

// readUntil skips keep-alive frames.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) Message {
	t.Helper()
	for {
		msg, err := readFrame(t, conn)
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if msg.Type == TypeKeepAlive && typ != TypeKeepAlive {
			continue
		}
		if msg.Type != typ {
			t.Fatalf("expected %s frame, got %s (%s)", typ, msg.Type, msg.Payload)
		}
		return msg
	}
}

func initPayload(t *testing.T, iss *token.Issuer, bearer bool) string {
	t.Helper()
	tok, err := iss.Issue("tech-1", []string{"DISTRIBUTION_TECH"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if bearer {
		tok = "Bearer " + tok
	}
	b, _ := json.Marshal(InitPayload{Authorization: tok})
	return string(b)
}

func TestServerAuthenticatesFromInitPayload(t *testing.T) {
	srv, _, iss := newTestServer(t)

	for _, bearer := range []bool{true, false} {
		conn := dialRaw(t, srv, ProtocolLegacy)
		writeFrame(t, conn, "", TypeConnectionInit, initPayload(t, iss, bearer))
		readUntil(t, conn, TypeConnectionAck)
	}

	conn := dialRaw(t, srv, ProtocolLegacy)
	writeFrame(t, conn, "", TypeConnectionInit, `{"Authorization":"Bearer not-a-jwt"}`)
	readUntil(t, conn, TypeConnectionError)

	conn = dialRaw(t, srv, ProtocolTransport)
	writeFrame(t, conn, "", TypeConnectionInit, `{"Authorization":"Bearer not-a-jwt"}`)
	_, err := readFrame(t, conn)
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != closeForbidden {
		t.Fatalf("expected close %d, got %v", closeForbidden, err)
	}
}

func TestServerStopCancelsSubscription(t *testing.T) {
	cases := []struct {
		protocol, start, stop string
	}{
		{ProtocolLegacy, TypeStart, TypeStop},
		{ProtocolTransport, TypeSubscribe, TypeComplete},
	}
	for _, tc := range cases {
		t.Run(tc.protocol, func(t *testing.T) {
			srv, hub, iss := newTestServer(t)
			conn := dialRaw(t, srv, tc.protocol)
			writeFrame(t, conn, "", TypeConnectionInit, initPayload(t, iss, true))
			readUntil(t, conn, TypeConnectionAck)

			writeFrame(t, conn, "s1", tc.start, `{"query":"subscription { orderCreated { id } }"}`)
			waitForSubscriber(t, hub, events.OrderCreated)

			writeFrame(t, conn, "s1", tc.stop, "")
			if tc.protocol == ProtocolLegacy {
				if msg := readUntil(t, conn, TypeComplete); msg.ID != "s1" {
					t.Fatalf("complete for wrong id %q", msg.ID)
				}
			}

			deadline := time.Now().Add(2 * time.Second)
			for hub.Subscribers(events.OrderCreated) != 0 {
				if time.Now().After(deadline) {
					t.Fatalf("subscription still registered after %s", tc.stop)
				}
				time.Sleep(5 * time.Millisecond)
			}
		})
	}
}

func TestServerDuplicateSubscriptionID(t *testing.T) {
	const query = `{"query":"subscription { shipmentCreated { id } }"}`

	t.Run(ProtocolTransport, func(t *testing.T) {
		srv, hub, iss := newTestServer(t)
		conn := dialRaw(t, srv, ProtocolTransport)
		writeFrame(t, conn, "", TypeConnectionInit, initPayload(t, iss, true))
		readUntil(t, conn, TypeConnectionAck)

		writeFrame(t, conn, "dup", TypeSubscribe, query)
		waitForSubscriber(t, hub, events.ShipmentCreated)
		writeFrame(t, conn, "dup", TypeSubscribe, query)

		_, err := readFrame(t, conn)
		var ce *websocket.CloseError
		if !errors.As(err, &ce) || ce.Code != closeSubscriberExists {
			t.Fatalf("expected close %d, got %v", closeSubscriberExists, err)
		}
	})

	t.Run(ProtocolLegacy, func(t *testing.T) {
		srv, hub, iss := newTestServer(t)
		conn := dialRaw(t, srv, ProtocolLegacy)
		writeFrame(t, conn, "", TypeConnectionInit, initPayload(t, iss, true))
		readUntil(t, conn, TypeConnectionAck)

		writeFrame(t, conn, "dup", TypeStart, query)
		waitForSubscriber(t, hub, events.ShipmentCreated)
		writeFrame(t, conn, "dup", TypeStart, query)

		if msg := readUntil(t, conn, TypeError); msg.ID != "dup" {
			t.Fatalf("error for wrong id %q", msg.ID)
		}
		if n := hub.Subscribers(events.ShipmentCreated); n != 1 {
			t.Fatalf("expected the first subscription to survive, got %d", n)
		}
	})
}

func TestServerSendsKeepAliveOnLegacy(t *testing.T) {
	srv, _, iss := newTestServer(t)
	conn := dialRaw(t, srv, ProtocolLegacy)
	writeFrame(t, conn, "", TypeConnectionInit, initPayload(t, iss, true))
	readUntil(t, conn, TypeConnectionAck)

	for i := 0; i < 2; i++ {
		readUntil(t, conn, TypeKeepAlive)
	}
}
