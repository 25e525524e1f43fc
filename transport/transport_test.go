package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
)

// recorder collects messages arriving on the server end of a pipe.
type recorder struct {
	mu   sync.Mutex
	msgs []map[string]any
}

func (r *recorder) listen(data []byte) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.msgs...)
}

func request(id uint64, method string) *jsonrpc2.Request {
	return &jsonrpc2.Request{Method: method, ID: jsonrpc2.ID{Num: id}}
}

func TestRequestTimesOut(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		rec := &recorder{}
		server.Listen(rec.listen)
		tr := New(client)
		defer tr.Close()

		done := make(chan error, 1)
		go func() {
			_, err := tr.SendData(context.Background(), request(1, "textDocument/hover"), 10*time.Second)
			done <- err
		}()

		time.Sleep(10*time.Second - time.Millisecond)
		synctest.Wait()
		assert.Equal(t, 1, tr.Pending())
		select {
		case err := <-done:
			t.Fatalf("request finished early: %v", err)
		default:
		}

		time.Sleep(time.Millisecond)
		synctest.Wait()
		err := <-done
		assert.ErrorIs(t, err, ErrRequestTimeout)
		assert.Equal(t, 0, tr.Pending())
		assert.Len(t, rec.all(), 1)
	})
}

func TestNotificationIsNotPending(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		rec := &recorder{}
		server.Listen(rec.listen)
		tr := New(client)
		defer tr.Close()

		resp, err := tr.SendData(context.Background(), &jsonrpc2.Request{Method: "initialized", Notif: true}, time.Second)
		require.NoError(t, err)
		assert.Nil(t, resp)
		assert.Equal(t, 0, tr.Pending())

		synctest.Wait()
		msgs := rec.all()
		require.Len(t, msgs, 1)
		assert.Equal(t, "initialized", msgs[0]["method"])
		assert.NotContains(t, msgs[0], "id")
	})
}

func TestBatchUnsupported(t *testing.T) {
	client, _ := Pipe()
	tr := New(client)
	defer tr.Close()

	_, err := tr.SendData(context.Background(), []*jsonrpc2.Request{request(1, "a")}, time.Second)
	assert.ErrorIs(t, err, ErrBatchUnsupported)

	_, err = tr.SendData(context.Background(), "nope", time.Second)
	assert.ErrorIs(t, err, ErrUnsupportedMessage)
}

func TestResponsesRoutedByID(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		var ids []jsonrpc2.ID
		var mu sync.Mutex
		server.Listen(func(data []byte) {
			var req jsonrpc2.Request
			require.NoError(t, json.Unmarshal(data, &req))
			mu.Lock()
			ids = append(ids, req.ID)
			mu.Unlock()
		})
		tr := New(client)
		defer tr.Close()

		results := make([]string, 3)
		var wg sync.WaitGroup
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := tr.SendData(context.Background(), request(uint64(i+1), "m"), time.Minute)
				if assert.NoError(t, err) {
					results[i+1] = string(*resp.Result)
				}
			}()
		}
		synctest.Wait()
		assert.Equal(t, 2, tr.Pending())

		for _, id := range []uint64{2, 1} {
			resp := &jsonrpc2.Response{ID: jsonrpc2.ID{Num: id}}
			require.NoError(t, resp.SetResult(id*10))
			require.NoError(t, postJSON(server, resp))
		}
		wg.Wait()

		assert.Equal(t, "10", results[1])
		assert.Equal(t, "20", results[2])
		assert.Equal(t, 0, tr.Pending())
	})
}

func TestErrorResponse(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		server.Listen(func(data []byte) {
			var req jsonrpc2.Request
			require.NoError(t, json.Unmarshal(data, &req))
			require.NoError(t, postJSON(server, &jsonrpc2.Response{
				ID:    req.ID,
				Error: &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "bad"},
			}))
		})
		tr := New(client)
		defer tr.Close()

		_, err := tr.SendData(context.Background(), request(3, "textDocument/completion"), time.Second)

		var respErr *ResponseError
		require.True(t, errors.As(err, &respErr))
		assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), respErr.Code)
		assert.Equal(t, "textDocument/completion", respErr.Method)
	})
}

func TestCloseFailsPending(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		server.Listen(func([]byte) {})
		tr := New(client)

		done := make(chan error, 1)
		go func() {
			_, err := tr.SendData(context.Background(), request(1, "m"), time.Minute)
			done <- err
		}()
		synctest.Wait()

		require.NoError(t, tr.Close())
		assert.ErrorIs(t, <-done, ErrClosed)

		_, err := tr.SendData(context.Background(), request(2, "m"), time.Minute)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestDuplicateID(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		server.Listen(func([]byte) {})
		tr := New(client)
		defer tr.Close()

		go tr.SendData(context.Background(), request(1, "m"), time.Second)
		synctest.Wait()

		_, err := tr.SendData(context.Background(), request(1, "m"), time.Second)
		assert.ErrorIs(t, err, ErrDuplicateID)
	})
}

func TestServerRequestsAnswered(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		rec := &recorder{}
		server.Listen(rec.listen)
		tr := New(client)
		defer tr.Close()

		require.NoError(t, postJSON(server, request(7, "client/registerCapability")))
		require.NoError(t, postJSON(server, request(8, "workspace/configuration")))
		synctest.Wait()

		msgs := rec.all()
		require.Len(t, msgs, 2)
		assert.Equal(t, float64(7), msgs[0]["id"])
		assert.Contains(t, msgs[0], "result")
		assert.Nil(t, msgs[0]["result"])
		assert.Equal(t, float64(8), msgs[1]["id"])
		assert.Equal(t, float64(jsonrpc2.CodeMethodNotFound), msgs[1]["error"].(map[string]any)["code"])
	})
}

func TestNotificationsDispatched(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		client, server := Pipe()
		server.Listen(func([]byte) {})
		c := NewClient(client)
		defer c.Close()

		var got []string
		c.OnNotification(func(method string, params json.RawMessage) {
			got = append(got, method+" "+string(params))
		})

		note := &jsonrpc2.Request{Method: "window/logMessage", Notif: true}
		require.NoError(t, note.SetParams(map[string]any{"type": 3}))
		require.NoError(t, postJSON(server, note))
		require.NoError(t, server.Post([]byte("{not json")))
		synctest.Wait()

		assert.Equal(t, []string{`window/logMessage {"type":3}`}, got)
	})
}

type echoHandler struct {
	calls []string
}

func (h *echoHandler) Handle(ctx *glsp.Context) (any, bool, bool, error) {
	h.calls = append(h.calls, ctx.Method)
	switch ctx.Method {
	case "echo":
		var params map[string]string
		if err := json.Unmarshal(ctx.Params, &params); err != nil {
			return nil, true, false, err
		}
		ctx.Notify("echoed", params)
		return params, true, true, nil
	case "fail":
		return nil, true, true, errors.New("server not initialized")
	case "ping":
		return nil, true, true, nil
	default:
		return nil, false, false, nil
	}
}

func TestHandlerPort(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		h := &echoHandler{}
		c := NewClient(NewHandlerPort(h))
		defer c.Close()

		var notes []string
		c.OnNotification(func(method string, params json.RawMessage) {
			notes = append(notes, method)
		})

		var out map[string]string
		err := c.Request(context.Background(), "echo", map[string]string{"a": "b"}, &out, time.Second)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "b"}, out)

		err = c.Request(context.Background(), "echo", []int{1}, &out, time.Second)
		var respErr *ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), respErr.Code)

		err = c.Request(context.Background(), "fail", nil, nil, time.Second)
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, int64(jsonrpc2.CodeInvalidRequest), respErr.Code)
		assert.Equal(t, "server not initialized", respErr.Message)

		err = c.Request(context.Background(), "nope", nil, nil, time.Second)
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), respErr.Code)

		require.NoError(t, c.Request(context.Background(), "ping", nil, &out, time.Second))
		require.NoError(t, c.Notify(context.Background(), "ping", nil))
		synctest.Wait()

		assert.Equal(t, []string{"echoed"}, notes)
		assert.Equal(t, []string{"echo", "echo", "fail", "nope", "ping", "ping"}, h.calls)
	})
}
