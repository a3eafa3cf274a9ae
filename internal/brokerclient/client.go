// Package brokerclient is the unprivileged side of the broker: it signs
// typed operation calls, sends them over the Unix socket and correlates the
// newline-delimited responses back to their callers.
package brokerclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/codefionn/pfortner/internal/consts"
	"github.com/codefionn/pfortner/internal/logger"
	"github.com/codefionn/pfortner/internal/protocol"
)

// Config holds client configuration.
type Config struct {
	// SocketPath is the path to the broker's Unix socket.
	SocketPath string
	// ConnectTimeout is the timeout for one dial attempt.
	ConnectTimeout time.Duration
	// RequestTimeout bounds the wait for each call's response.
	RequestTimeout time.Duration
	// MaxReconnectAttempts is how many redials follow a failed connect
	// before the call fails with ErrBrokerUnavailable.
	MaxReconnectAttempts int
	// ReconnectDelay is the initial delay between reconnection attempts;
	// it doubles per attempt up to ReconnectMaxDelay.
	ReconnectDelay time.Duration
	// ReconnectMaxDelay caps the backoff delay.
	ReconnectMaxDelay time.Duration
	// VerifyResponses requires a valid service signature on every response.
	// The not-ready rejection is exempt; the service cannot sign before its
	// secret is loaded.
	VerifyResponses bool
	// WriteTimeout is the timeout for writing one framed request.
	WriteTimeout time.Duration
}

// DefaultConfig returns a default configuration for socketPath.
func DefaultConfig(socketPath string) *Config {
	return &Config{
		SocketPath:           socketPath,
		ConnectTimeout:       consts.Timeout10Seconds,
		RequestTimeout:       consts.Timeout30Seconds,
		MaxReconnectAttempts: consts.DefaultMaxReconnectAttempts,
		ReconnectDelay:       consts.Timeout1Second,
		ReconnectMaxDelay:    consts.Timeout30Seconds,
		VerifyResponses:      true,
		WriteTimeout:         consts.Timeout10Seconds,
	}
}

// Client is a broker client. It connects lazily on the first call and
// redials with bounded exponential backoff after a lost connection. Safe for
// concurrent use; calls on one connection are multiplexed by request id.
type Client struct {
	cfg    *Config
	signer *protocol.Signer

	connMu  sync.Mutex
	conn    net.Conn
	closed  bool
	closeCh chan struct{}

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Response

	wg sync.WaitGroup
}

// New creates a client. The signer must be built from the same shared secret
// the service loaded, or every call will come back unauthorized.
func New(cfg *Config, signer *protocol.Signer) (*Client, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("brokerclient: socket path is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("brokerclient: signer is required")
	}
	return &Client{
		cfg:     cfg,
		signer:  signer,
		closeCh: make(chan struct{}),
		pending: make(map[string]chan *protocol.Response),
	}, nil
}

// Close drops the connection and fails pending calls. Subsequent calls
// return ErrClosed.
func (c *Client) Close() error {
	c.connMu.Lock()
	if c.closed {
		c.connMu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

// Connected reports whether a live connection is held. Calls connect lazily,
// so false does not mean the next call will fail.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// ensureConnected dials if no connection is held, backing off exponentially
// between attempts. The connection lock is held only around the state checks,
// never across a sleep or dial, so Close and concurrent calls stay responsive
// through the whole retry schedule.
func (c *Client) ensureConnected(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		c.connMu.Lock()
		if c.closed {
			c.connMu.Unlock()
			return ErrClosed
		}
		if c.conn != nil {
			c.connMu.Unlock()
			return nil
		}
		c.connMu.Unlock()

		if attempt > 0 {
			delay := c.cfg.ReconnectDelay * time.Duration(1<<uint(attempt-1))
			if delay > c.cfg.ReconnectMaxDelay {
				delay = c.cfg.ReconnectMaxDelay
			}
			logger.Debug("reconnect attempt %d/%d in %s", attempt, c.cfg.MaxReconnectAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			case <-c.closeCh:
				return ErrClosed
			}
		}

		conn, err := net.DialTimeout("unix", c.cfg.SocketPath, c.cfg.ConnectTimeout)
		if err != nil {
			lastErr = err
			continue
		}

		c.connMu.Lock()
		if c.closed {
			c.connMu.Unlock()
			conn.Close()
			return ErrClosed
		}
		if c.conn != nil {
			// Another caller connected while we dialed; use theirs.
			c.connMu.Unlock()
			conn.Close()
			return nil
		}
		c.conn = conn
		c.wg.Add(1)
		go c.readPump(conn)
		c.connMu.Unlock()
		return nil
	}
	return fmt.Errorf("%w: %v", ErrBrokerUnavailable, lastErr)
}

// readPump reads framed responses and routes them to their waiting calls by
// request id. A response nobody waits for (timed-out call, duplicate) is
// discarded.
func (c *Client) readPump(conn net.Conn) {
	defer c.wg.Done()
	defer c.dropConn(conn)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, consts.BufferSize1KB), consts.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp protocol.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			logger.Warn("discarding unparseable response: %v", err)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.RequestID]
		if ok {
			delete(c.pending, resp.RequestID)
		}
		c.pendingMu.Unlock()

		if !ok {
			logger.Debug("discarding response for unknown request %q", resp.RequestID)
			continue
		}
		ch <- &resp
	}
}

// dropConn clears the connection and fails every pending call, so waiters do
// not sit out their full timeout on a dead socket.
func (c *Client) dropConn(conn net.Conn) {
	conn.Close()

	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.pendingMu.Unlock()
}

func (c *Client) register(requestID string) chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	c.pendingMu.Lock()
	c.pending[requestID] = ch
	c.pendingMu.Unlock()
	return ch
}

func (c *Client) unregister(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

func (c *Client) writeRequest(req *protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("brokerclient: marshal request: %w", err)
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrBrokerUnavailable
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if _, err := conn.Write(append(data, '\n')); err != nil {
		c.dropConn(conn)
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// Call performs one operation: sign, send, wait for the correlated response,
// decode its data into result. result may be nil to discard the data.
func (c *Client) Call(ctx context.Context, operation string, params, result interface{}) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	req, err := protocol.NewRequest(operation, params)
	if err != nil {
		return err
	}
	if err := c.signer.SignRequest(req); err != nil {
		return fmt.Errorf("brokerclient: sign request: %w", err)
	}

	ch := c.register(req.RequestID)
	defer c.unregister(req.RequestID)

	if err := c.writeRequest(req); err != nil {
		return err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		// The slot is freed by the deferred unregister; a late response for
		// this id is discarded by the read pump.
		return fmt.Errorf("%w: %s %s", ErrTimeout, operation, req.RequestID)
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: connection lost", ErrBrokerUnavailable)
		}
		return c.finishCall(resp, result)
	}
}

func (c *Client) finishCall(resp *protocol.Response, result interface{}) error {
	if err := c.checkSignature(resp); err != nil {
		return err
	}
	if !resp.Success {
		return responseError(resp)
	}
	if result == nil {
		return nil
	}
	return protocol.DecodeData(resp.Data, result)
}

// checkSignature enforces response authenticity when verification is on.
func (c *Client) checkSignature(resp *protocol.Response) error {
	if !c.cfg.VerifyResponses {
		return nil
	}
	if resp.Signature == "" {
		// The service cannot sign before its secret is loaded; the not-ready
		// rejection is the one legitimately unsigned response.
		if !resp.Success && resp.ErrorCode == protocol.ErrorCodeNotReady {
			return nil
		}
		return ErrUnsignedResponse
	}
	if err := c.signer.VerifyResponse(resp); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsignedResponse, err)
	}
	return nil
}
