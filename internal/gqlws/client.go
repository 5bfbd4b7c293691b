package gqlws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	// Token is sent both as the handshake Authorization header and in the
	// connection_init payload.
	Token      string
	Protocol   string
	AckTimeout time.Duration
	Header     http.Header
	Dialer     *websocket.Dialer
	Logger     *slog.Logger
}

// Event is one server frame addressed to a subscription.
type Event struct {
	ID      string
	Type    string
	Payload json.RawMessage
}

// Result decodes a data/next payload.
func (e Event) Result() (Result, error) {
	var res Result
	if len(e.Payload) == 0 {
		return res, nil
	}
	err := json.Unmarshal(e.Payload, &res)
	return res, err
}

type Client struct {
	conn     *websocket.Conn
	protocol string
	log      *slog.Logger

	wmu sync.Mutex
}

func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.Protocol == "" {
		opts.Protocol = ProtocolLegacy
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	dialer := websocket.DefaultDialer
	if opts.Dialer != nil {
		dialer = opts.Dialer
	}
	d := *dialer
	d.Subprotocols = []string{opts.Protocol}

	header := http.Header{}
	for k, v := range opts.Header {
		header[k] = v
	}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}

	conn, resp, err := d.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %s)", ErrConnect, url, err, resp.Status)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", ErrTimeout, url, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnect, url, err)
	}

	protocol := conn.Subprotocol()
	if protocol == "" {
		protocol = opts.Protocol
	}
	c := &Client{conn: conn, protocol: protocol, log: opts.Logger}
	c.log.Debug("socket open", "url", url, "protocol", protocol)

	if err := c.init(ctx, opts); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Protocol() string { return c.protocol }

func (c *Client) init(ctx context.Context, opts Options) error {
	payload := InitPayload{}
	if opts.Token != "" {
		payload.Authorization = "Bearer " + opts.Token
	}
	if err := c.send("", TypeConnectionInit, payload); err != nil {
		return fmt.Errorf("%w: send connection_init: %v", ErrConnect, err)
	}

	deadline := time.Now().Add(opts.AckTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetReadDeadline(deadline)
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		msg, err := c.read()
		if err != nil {
			if isTimeout(err) {
				return fmt.Errorf("%w: waiting for connection_ack", ErrTimeout)
			}
			return fmt.Errorf("%w: waiting for connection_ack: %v", ErrConnect, err)
		}
		switch msg.Type {
		case TypeConnectionAck:
			c.log.Debug("connection acknowledged")
			return nil
		case TypeKeepAlive, TypePong:
		case TypePing:
			if err := c.send("", TypePong, nil); err != nil {
				return fmt.Errorf("%w: send pong: %v", ErrConnect, err)
			}
		case TypeConnectionError, TypeError:
			return fmt.Errorf("%w: server rejected connection: %s", ErrConnect, msg.Payload)
		default:
			c.log.Debug("ignoring frame before ack", "type", msg.Type)
		}
	}
}

// Subscribe sends start (legacy) or subscribe (transport) for id.
func (c *Client) Subscribe(id string, req Request) error {
	if err := c.send(id, startType(c.protocol), req); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrSubscription, startType(c.protocol), err)
	}
	return nil
}

// Stop ends the subscription id.
func (c *Client) Stop(id string) error {
	typ := TypeStop
	if c.protocol == ProtocolTransport {
		typ = TypeComplete
	}
	return c.send(id, typ, nil)
}

// Next blocks until a data, next, error or complete frame arrives, the
// connection fails or ctx ends.
func (c *Client) Next(ctx context.Context) (Event, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(d)
	}

	for {
		msg, err := c.read()
		if err != nil {
			switch {
			case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err) && ctx.Err() == nil:
				return Event{}, fmt.Errorf("%w: no frame before deadline", ErrTimeout)
			case ctx.Err() != nil:
				return Event{}, ctx.Err()
			}
			return Event{}, fmt.Errorf("%w: read: %v", ErrConnect, err)
		}

		switch msg.Type {
		case TypeData, TypeNext, TypeError, TypeComplete:
			return Event{ID: msg.ID, Type: msg.Type, Payload: msg.Payload}, nil
		case TypeKeepAlive, TypePong:
			c.log.Debug("keep-alive", "type", msg.Type)
		case TypePing:
			if err := c.send("", TypePong, nil); err != nil {
				return Event{}, fmt.Errorf("%w: send pong: %v", ErrConnect, err)
			}
		case TypeConnectionError:
			return Event{}, fmt.Errorf("%w: %s", ErrConnect, msg.Payload)
		default:
			c.log.Warn("unexpected frame", "type", msg.Type, "id", msg.ID)
		}
	}
}

// Close says goodbye and closes the socket.
func (c *Client) Close() error {
	if c.protocol == ProtocolLegacy {
		_ = c.send("", TypeConnectionTerminate, nil)
	}
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.wmu.Unlock()
	return c.conn.Close()
}

func (c *Client) send(id, typ string, payload any) error {
	msg, err := newMessage(id, typ, payload)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) read() (Message, error) {
	var msg Message
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("malformed frame %q: %w", data, err)
	}
	return msg, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Subscription describes one watch run.
type Subscription struct {
	ID      string
	Request Request
	// Once stops after the first data frame.
	Once bool
}

// Watch dials, subscribes and hands every result to fn until the server
// completes the subscription, ctx ends, or Once is satisfied. It does not
// reconnect.
func Watch(ctx context.Context, url string, opts Options, sub Subscription, fn func(Event) error) error {
	c, err := Dial(ctx, url, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	if sub.ID == "" {
		sub.ID = "1"
	}
	if err := c.Subscribe(sub.ID, sub.Request); err != nil {
		return err
	}

	for {
		ev, err := c.Next(ctx)
		if err != nil {
			return err
		}
		if ev.ID != "" && ev.ID != sub.ID {
			c.log.Warn("frame for unknown subscription", "id", ev.ID)
			continue
		}

		switch ev.Type {
		case TypeData, TypeNext:
			res, err := ev.Result()
			if err != nil {
				return fmt.Errorf("%w: decode result: %v", ErrSubscription, err)
			}
			if len(res.Errors) > 0 && len(res.Data) == 0 {
				return fmt.Errorf("%w: %s", ErrSubscription, res.Errors[0].Message)
			}
			if err := fn(ev); err != nil {
				return err
			}
			if sub.Once {
				_ = c.Stop(sub.ID)
				return nil
			}
		case TypeError:
			return fmt.Errorf("%w: %s", ErrSubscription, ev.Payload)
		case TypeComplete:
			return nil
		}
	}
}
