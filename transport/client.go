package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// Client numbers requests sequentially from 1 and decodes results.
type Client struct {
	transport *Transport
	nextID    atomic.Uint64
}

func NewClient(port Port) *Client {
	return &Client{transport: New(port)}
}

func (c *Client) Transport() *Transport {
	return c.transport
}

// Request sends method with params and decodes the result into result,
// which may be nil. A null result leaves result untouched.
func (c *Client) Request(ctx context.Context, method string, params, result any, timeout time.Duration) error {
	req := &jsonrpc2.Request{
		Method: method,
		ID:     jsonrpc2.ID{Num: c.nextID.Add(1)},
	}
	if err := req.SetParams(params); err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	resp, err := c.transport.SendData(ctx, req, timeout)
	if err != nil {
		return err
	}
	if result == nil || resp.Result == nil || string(*resp.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(*resp.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req := &jsonrpc2.Request{Method: method, Notif: true}
	if err := req.SetParams(params); err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	_, err := c.transport.SendData(ctx, req, 0)
	return err
}

// OnNotification routes server notifications to fn.
func (c *Client) OnNotification(fn func(method string, params json.RawMessage)) {
	c.transport.OnNotification(func(req *jsonrpc2.Request) {
		var params json.RawMessage
		if req.Params != nil {
			params = *req.Params
		}
		fn(req.Method, params)
	})
}

func (c *Client) Close() error {
	return c.transport.Close()
}
