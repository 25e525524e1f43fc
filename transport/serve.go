package transport

import (
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/tliron/glsp"
)

// ServeHandler answers requests arriving on port with h. Messages are
// handled in order on the port's delivery goroutine. Errors are mapped to
// JSON-RPC codes the same way glsp's server does.
func ServeHandler(port Port, h glsp.Handler) {
	port.Listen(func(data []byte) {
		var req jsonrpc2.Request
		if err := json.Unmarshal(data, &req); err != nil {
			log.Debugf("handler port ignoring non-request: %s", err)
			return
		}

		ctx := glsp.Context{
			Method: req.Method,
			Notify: func(method string, params any) {
				msg := &jsonrpc2.Request{Method: method, Notif: true}
				if err := msg.SetParams(params); err != nil {
					log.Errorf("encode %s: %s", method, err)
					return
				}
				if err := postJSON(port, msg); err != nil {
					log.Warningf("notify %s: %s", method, err)
				}
			},
			Call: func(method string, params any, result any) {
				log.Warningf("server-to-client call %s is not supported in process", method)
			},
		}
		if req.Params != nil {
			ctx.Params = *req.Params
		}

		r, validMethod, validParams, err := h.Handle(&ctx)
		if req.Notif {
			if err != nil {
				log.Warningf("%s: %s", req.Method, err)
			}
			return
		}

		resp := &jsonrpc2.Response{ID: req.ID}
		switch {
		case !validMethod:
			resp.Error = &jsonrpc2.Error{
				Code:    jsonrpc2.CodeMethodNotFound,
				Message: fmt.Sprintf("method not supported: %s", req.Method),
			}
		case !validParams:
			resp.Error = &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams}
			if err != nil {
				resp.Error.Message = err.Error()
			}
		case err != nil:
			resp.Error = &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: err.Error()}
		default:
			if err := resp.SetResult(r); err != nil {
				resp.Error = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
			}
		}
		if err := postJSON(port, resp); err != nil {
			log.Warningf("reply to %s: %s", req.Method, err)
		}
	})
}

// NewHandlerPort runs h behind an in-process pipe and returns the client
// end. Closing the returned port stops the handler.
func NewHandlerPort(h glsp.Handler) Port {
	client, server := Pipe()
	ServeHandler(server, h)
	return client
}

func postJSON(port Port, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return port.Post(data)
}
