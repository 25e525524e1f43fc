// Package transport carries JSON-RPC 2.0 messages between the editor side
// and a language server worker reachable only by message passing.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pyscope.transport")

// Port is one end of a message channel to a worker. Listen must be called
// at most once; messages posted by the peer before then are queued.
type Port interface {
	Post(msg []byte) error
	Listen(handler func(msg []byte))
	Close() error
}

// Transport correlates requests with responses arriving on a Port.
type Transport struct {
	port Port

	mu             sync.Mutex
	pending        map[jsonrpc2.ID]chan *jsonrpc2.Response
	closed         bool
	onNotification func(*jsonrpc2.Request)
}

func New(port Port) *Transport {
	t := &Transport{
		port:    port,
		pending: make(map[jsonrpc2.ID]chan *jsonrpc2.Response),
	}
	port.Listen(t.receive)
	return t
}

// OnNotification sets the handler for messages pushed by the server.
func (t *Transport) OnNotification(fn func(*jsonrpc2.Request)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNotification = fn
}

// SendData posts a request or notification. Notifications return at once
// with a nil response. Requests wait for the matching response, the
// timeout, or ctx. A timeout of zero or less waits without a deadline.
func (t *Transport) SendData(ctx context.Context, data any, timeout time.Duration) (*jsonrpc2.Response, error) {
	switch msg := data.(type) {
	case *jsonrpc2.Request:
		if msg.Notif {
			return nil, t.notify(msg)
		}
		return t.request(ctx, msg, timeout)
	case []*jsonrpc2.Request:
		return nil, ErrBatchUnsupported
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, data)
	}
}

// Pending is the number of requests awaiting a response.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close fails every pending request with ErrClosed and closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()
	return t.port.Close()
}

func (t *Transport) notify(req *jsonrpc2.Request) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return t.post(req.Method, req)
}

func (t *Transport) request(ctx context.Context, req *jsonrpc2.Request, timeout time.Duration) (*jsonrpc2.Response, error) {
	ch := make(chan *jsonrpc2.Response, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := t.pending[req.ID]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%s: %w: %s", req.Method, ErrDuplicateID, req.ID)
	}
	t.pending[req.ID] = ch
	t.mu.Unlock()

	if err := t.post(req.Method, req); err != nil {
		t.forget(req.ID)
		return nil, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: %w", req.Method, ErrClosed)
		}
		if resp.Error != nil {
			return resp, &ResponseError{Method: req.Method, Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp, nil
	case <-expired:
		t.forget(req.ID)
		return nil, fmt.Errorf("%s after %s: %w", req.Method, timeout, ErrRequestTimeout)
	case <-ctx.Done():
		t.forget(req.ID)
		return nil, ctx.Err()
	}
}

func (t *Transport) post(method string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	if err := t.port.Post(data); err != nil {
		return fmt.Errorf("post %s: %w", method, err)
	}
	return nil
}

func (t *Transport) forget(id jsonrpc2.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

func (t *Transport) receive(data []byte) {
	var head struct {
		Method *string `json:"method"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		log.Warningf("dropping malformed message: %s", err)
		return
	}

	if head.Method != nil {
		var req jsonrpc2.Request
		if err := json.Unmarshal(data, &req); err != nil {
			log.Warningf("dropping malformed %s: %s", *head.Method, err)
			return
		}
		if req.Notif {
			t.dispatch(&req)
		} else {
			t.answer(&req)
		}
		return
	}

	var resp jsonrpc2.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Warningf("dropping malformed response: %s", err)
		return
	}
	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	delete(t.pending, resp.ID)
	t.mu.Unlock()
	if !ok {
		log.Debugf("response for unknown request %s", resp.ID)
		return
	}
	ch <- &resp
}

func (t *Transport) dispatch(req *jsonrpc2.Request) {
	t.mu.Lock()
	fn := t.onNotification
	t.mu.Unlock()
	if fn == nil {
		log.Debugf("no handler for %s", req.Method)
		return
	}
	fn(req)
}

// answer replies to requests the server sends to the client. Only
// capability registration is acknowledged.
func (t *Transport) answer(req *jsonrpc2.Request) {
	resp := &jsonrpc2.Response{ID: req.ID}
	switch req.Method {
	case "client/registerCapability", "client/unregisterCapability":
		if err := resp.SetResult(nil); err != nil {
			log.Errorf("encode %s reply: %s", req.Method, err)
			return
		}
	default:
		resp.Error = &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}
	}
	if err := t.post(req.Method, resp); err != nil {
		log.Warningf("reply to %s: %s", req.Method, err)
	}
}
