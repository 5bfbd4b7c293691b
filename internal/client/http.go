// Package client talks to the distd REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bbdist/internal/model"
)

var ErrNotFound = errors.New("not found")

// APIError carries a non-2xx answer.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

type HTTP struct {
	Base  string
	Token string
	HTTP  *http.Client
}

func NewHTTP(base, token string) *HTTP {
	return &HTTP{
		Base:  strings.TrimRight(base, "/"),
		Token: token,
		HTTP:  &http.Client{Timeout: 15 * time.Second},
	}
}

type LoginResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (c *HTTP) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	var out LoginResult
	in := map[string]string{"login": login, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) ListOrders(ctx context.Context, status string) ([]model.Order, error) {
	path := "/v1/orders"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []model.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTP) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var out model.Order
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) CreateOrder(ctx context.Context, facility string, priority model.Priority, items []model.OrderItem) (*model.Order, error) {
	in := struct {
		Facility string            `json:"facility"`
		Priority model.Priority    `json:"priority"`
		Items    []model.OrderItem `json:"items"`
	}{facility, priority, items}

	var out model.Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) SetOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	var out model.Order
	in := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/v1/orders/"+url.PathEscape(id)+"/status", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) CreateShipment(ctx context.Context, orderID string) (*model.Shipment, error) {
	var out model.Shipment
	if err := c.do(ctx, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/shipments", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) SetShipmentStatus(ctx context.Context, id string, status model.ShipmentStatus) (*model.Shipment, error) {
	var out model.Shipment
	in := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/v1/shipments/"+url.PathEscape(id)+"/status", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) ShipmentLabel(ctx context.Context, id string) (string, error) {
	var out bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/v1/shipments/"+url.PathEscape(id)+"/label", nil, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (c *HTTP) RecordMovement(ctx context.Context, m model.Movement) (*model.Movement, error) {
	path, err := movementPath(m.Kind)
	if err != nil {
		return nil, err
	}
	in := map[string]string{
		"unitNumber":  m.UnitNumber,
		"productCode": m.ProductCode,
		"from":        m.From,
		"to":          m.To,
		"reason":      m.Reason,
	}
	var out model.Movement
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTP) ListMovements(ctx context.Context, kind model.MovementKind) ([]model.Movement, error) {
	path, err := movementPath(kind)
	if err != nil {
		return nil, err
	}
	var out []model.Movement
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func movementPath(kind model.MovementKind) (string, error) {
	switch kind {
	case model.MovementReturn:
		return "/v1/returns", nil
	case model.MovementImport:
		return "/v1/imports", nil
	case model.MovementTransfer:
		return "/v1/transfers", nil
	}
	return "", fmt.Errorf("unknown movement kind %q", kind)
}

// do sends in as JSON and decodes the answer into out; a *bytes.Buffer out
// receives the raw body. 204 leaves out untouched.
func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode/100 != 2:
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if buf, ok := out.(*bytes.Buffer); ok {
		_, err := buf.ReadFrom(resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
