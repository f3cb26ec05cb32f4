// Package rpc implements the notify.Notifier interface on top of a JSON-RPC
// 2.0 connection to the runtime process. Every channel message travels as a
// notification whose method is the channel name; request/response pairing is
// carried inside payloads (requestId), not by the RPC layer.
package rpc

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsjsonrpc2 "github.com/sourcegraph/jsonrpc2/websocket"
	"go.uber.org/zap"

	"github.com/replkit/replkit/pkg/notify"
)

// Conn is a Notifier backed by a jsonrpc2 connection.
type Conn struct {
	*notify.Dispatcher
	conn   *jsonrpc2.Conn
	logger *zap.Logger
}

var _ notify.Notifier = (*Conn)(nil)

// NewStream returns a Conn speaking Content-Length framed JSON-RPC over rw,
// the framing used when the runtime is attached over a stdio pipe.
func NewStream(ctx context.Context, rw io.ReadWriteCloser, logger *zap.Logger) *Conn {
	stream := jsonrpc2.NewBufferedStream(rw, jsonrpc2.VSCodeObjectCodec{})
	return newConn(ctx, stream, logger)
}

// NewWebSocket returns a Conn speaking JSON-RPC over an established
// websocket connection.
func NewWebSocket(ctx context.Context, ws *websocket.Conn, logger *zap.Logger) *Conn {
	return newConn(ctx, wsjsonrpc2.NewObjectStream(ws), logger)
}

func newConn(ctx context.Context, stream jsonrpc2.ObjectStream, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{Dispatcher: notify.NewDispatcher(), logger: logger}
	c.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(c.handle))
	return c
}

// Send delivers m to the peer as a notification.
func (c *Conn) Send(m notify.Message) error {
	return c.conn.Notify(context.Background(), string(m.Channel()), m)
}

// Close tears down the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// DisconnectNotify returns a channel closed when the connection ends.
func (c *Conn) DisconnectNotify() <-chan struct{} { return c.conn.DisconnectNotify() }

func (c *Conn) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	var raw json.RawMessage
	if req.Params != nil {
		raw = *req.Params
	}
	m, err := notify.Decode(notify.Channel(req.Method), raw)
	if err != nil {
		// Unknown or malformed traffic is dropped, never fatal.
		c.logger.Debug("dropping message", zap.String("method", req.Method), zap.Error(err))
		return nil, nil
	}
	c.Dispatch(m)
	return nil, nil
}
