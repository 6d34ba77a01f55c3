// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package ws implements a surrealq.Conn speaking the SurrealDB RPC protocol
// over a websocket. Requests are sent as they are made, a single reader
// hands each reply to the caller waiting for its id.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/canonical/surrealq"
)

// ErrClosed is returned by calls made on, or waiting on, a closed Conn.
var ErrClosed = errors.New("connection closed")

// RPCError is an error reported by the server for a request as a whole.
type RPCError struct {
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Option configures Dial.
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	encoding Encoding
	dialer   *websocket.Dialer
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEncoding selects the message encoding. The default is CBOR.
func WithEncoding(enc Encoding) Option {
	return func(o *options) {
		o.encoding = enc
	}
}

// WithDialer sets the dialer used to open the websocket. Its subprotocols
// are replaced by the selected encoding.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = dialer
	}
}

type reply struct {
	result surrealq.Value
	err    error
}

// Conn is an RPC connection to a SurrealDB server. It is safe for
// concurrent use.
type Conn struct {
	ws     *websocket.Conn
	codec  codec
	logger zerolog.Logger

	// writeMutex serialises writes to ws.
	writeMutex sync.Mutex

	// mutex must be held when accessing pending and err.
	mutex   sync.Mutex
	pending map[string]chan reply
	err     error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the RPC endpoint at url, such as
// "ws://localhost:8000/rpc".
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	o := options{
		logger:   zerolog.Nop(),
		encoding: CBOR,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	cdc, err := newCodec(o.encoding)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %s", url, err)
	}

	dialer := *o.dialer
	dialer.Subprotocols = []string{string(o.encoding)}
	wsconn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("cannot connect to %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("cannot connect to %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Conn{
		ws:      wsconn,
		codec:   cdc,
		logger:  o.logger.With().Str("url", url).Str("encoding", string(o.encoding)).Logger(),
		pending: map[string]chan reply{},
		closed:  make(chan struct{}),
	}
	c.logger.Debug().Msg("connected")
	go c.readLoop()
	return c, nil
}

// readLoop delivers replies until the websocket fails or is closed.
func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		msg, err := c.codec.decode(data)
		if err != nil {
			c.logger.Debug().Err(err).Msg("cannot decode reply")
			continue
		}
		id, _ := msg["id"].(surrealq.Strand)

		c.mutex.Lock()
		ch, ok := c.pending[string(id)]
		delete(c.pending, string(id))
		c.mutex.Unlock()
		if !ok {
			c.logger.Debug().Str("id", string(id)).Msg("reply to unknown request")
			continue
		}
		ch <- parseReply(msg)
	}
}

func parseReply(msg surrealq.Object) reply {
	if e, ok := msg["error"].(surrealq.Object); ok {
		rpcErr := &RPCError{}
		if code, ok := e["code"].(surrealq.Number); ok {
			rpcErr.Code = code.Int64()
		}
		if m, ok := e["message"].(surrealq.Strand); ok {
			rpcErr.Message = string(m)
		}
		return reply{err: rpcErr}
	}
	result := msg["result"]
	if result == nil {
		result = surrealq.Null{}
	}
	return reply{result: result}
}

// shutdown records the error that stopped the reader and wakes up every
// waiting caller.
func (c *Conn) shutdown(err error) {
	c.mutex.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mutex.Unlock()
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.logger.Debug().Err(err).Msg("reader stopped")
}

func (c *Conn) closedErr() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.err == nil || websocket.IsCloseError(c.err, websocket.CloseNormalClosure) || errors.Is(c.err, ErrClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %s", ErrClosed, c.err)
}

// call sends a request and waits for its reply.
func (c *Conn) call(ctx context.Context, method string, params ...surrealq.Value) (surrealq.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	data, err := c.codec.encode(surrealq.Object{
		"id":     surrealq.Strand(id),
		"method": surrealq.Strand(method),
		"params": surrealq.Array(params),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot encode %s request: %s", method, err)
	}

	ch := make(chan reply, 1)
	c.mutex.Lock()
	if c.err != nil {
		c.mutex.Unlock()
		return nil, c.closedErr()
	}
	c.pending[id] = ch
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		delete(c.pending, id)
		c.mutex.Unlock()
	}()

	c.writeMutex.Lock()
	deadline, _ := ctx.Deadline()
	err = c.ws.SetWriteDeadline(deadline)
	if err == nil {
		err = c.ws.WriteMessage(c.codec.messageType(), data)
	}
	c.writeMutex.Unlock()
	if err != nil {
		return nil, fmt.Errorf("cannot send %s request: %w", method, err)
	}
	c.logger.Debug().Str("id", id).Str("method", method).Msg("request sent")

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closedErr()
	}
}

// Use selects the namespace and database that later queries run against.
func (c *Conn) Use(ctx context.Context, namespace, database string) error {
	_, err := c.call(ctx, "use", surrealq.Strand(namespace), surrealq.Strand(database))
	return err
}

// Version returns the version reported by the server.
func (c *Conn) Version(ctx context.Context) (string, error) {
	v, err := c.call(ctx, "version")
	if err != nil {
		return "", err
	}
	s, ok := v.(surrealq.Strand)
	if !ok {
		return "", fmt.Errorf("cannot read version: need string, got %s", v.Kind())
	}
	return string(s), nil
}

// Execute sends program and its parameters in a single query request.
func (c *Conn) Execute(ctx context.Context, program string, params surrealq.ParameterMap) (*surrealq.Response, error) {
	args := []surrealq.Value{surrealq.Strand(program)}
	if len(params) > 0 {
		args = append(args, surrealq.Object(params))
	}
	result, err := c.call(ctx, "query", args...)
	if err != nil {
		return nil, err
	}
	return surrealq.ParseResponse(result)
}

// Close sends a close frame and closes the websocket. Calls waiting for a
// reply return ErrClosed.
func (c *Conn) Close() error {
	c.mutex.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mutex.Unlock()

	c.writeMutex.Lock()
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMutex.Unlock()
	if err != nil {
		c.logger.Debug().Err(err).Msg("cannot send close frame")
	}

	err = c.ws.Close()
	<-c.closed
	c.logger.Debug().Msg("closed")
	return err
}
