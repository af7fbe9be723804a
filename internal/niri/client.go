package niri

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"
	"time"
)

// SocketEnv names the environment variable holding the IPC socket path.
const SocketEnv = "NIRI_SOCKET"

// ErrNoSocket is returned when no socket path is configured.
var ErrNoSocket = errors.New(SocketEnv + " is not set")

const maxLineSize = 4 * 1024 * 1024

// Client issues requests over the niri IPC socket. Each request uses a
// fresh connection.
type Client struct {
	path   string
	logger *slog.Logger
}

// NewClient creates a client for path, or for $NIRI_SOCKET when path is empty.
func NewClient(path string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = os.Getenv(SocketEnv)
	}
	if path == "" {
		return nil, ErrNoSocket
	}
	return &Client{path: path, logger: logger}, nil
}

// SocketPath returns the socket the client connects to.
func (c *Client) SocketPath() string {
	return c.path
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return nil, fmt.Errorf("connect to niri at %s: %w", c.path, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// send writes req as one line and reads the reply line.
func send(conn net.Conn, r *bufio.Reader, req any) (json.RawMessage, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	line, err := readLine(r)
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	return decodeReply(line)
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxLineSize {
			return nil, fmt.Errorf("line exceeds %d bytes", maxLineSize)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

func (c *Client) request(ctx context.Context, req any) (json.RawMessage, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ok, err := send(conn, bufio.NewReader(conn), req)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return ok, err
}

// Windows returns every open window.
func (c *Client) Windows(ctx context.Context) ([]Window, error) {
	ok, err := c.request(ctx, "Windows")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Windows []Window `json:"Windows"`
	}
	if err := json.Unmarshal(ok, &resp); err != nil {
		return nil, fmt.Errorf("decode windows: %w", err)
	}
	return resp.Windows, nil
}

// Workspaces returns every workspace.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	ok, err := c.request(ctx, "Workspaces")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Workspaces []Workspace `json:"Workspaces"`
	}
	if err := json.Unmarshal(ok, &resp); err != nil {
		return nil, fmt.Errorf("decode workspaces: %w", err)
	}
	return resp.Workspaces, nil
}

// Outputs returns connected outputs sorted by name.
func (c *Client) Outputs(ctx context.Context) ([]Output, error) {
	ok, err := c.request(ctx, "Outputs")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Outputs map[string]Output `json:"Outputs"`
	}
	if err := json.Unmarshal(ok, &resp); err != nil {
		return nil, fmt.Errorf("decode outputs: %w", err)
	}

	outputs := make([]Output, 0, len(resp.Outputs))
	for name, o := range resp.Outputs {
		if o.Name == "" {
			o.Name = name
		}
		outputs = append(outputs, o)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Name < outputs[j].Name })
	return outputs, nil
}

// FocusWindow focuses the window with id.
func (c *Client) FocusWindow(ctx context.Context, id uint64) error {
	var req focusWindowRequest
	req.Action.FocusWindow.ID = id

	ok, err := c.request(ctx, req)
	if err != nil {
		return err
	}
	var handled string
	if err := json.Unmarshal(ok, &handled); err != nil || handled != "Handled" {
		return fmt.Errorf("unexpected reply to FocusWindow: %s", string(ok))
	}
	c.logger.Debug("focused window", "id", id)
	return nil
}

// EventStream opens the event stream. The stream closes when ctx is done.
func (c *Client) EventStream(ctx context.Context) (*EventStream, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	// The stream is long-lived; only the handshake is bounded by ctx's deadline.
	r := bufio.NewReader(conn)
	if _, err := send(conn, r, "EventStream"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("start event stream: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})

	s := &EventStream{conn: conn, reader: r}
	s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// EventStream reads events from a long-lived connection.
type EventStream struct {
	conn   net.Conn
	reader *bufio.Reader
	stop   func() bool

	closeOnce sync.Once
	closeErr  error
}

// Next blocks until the next event. Lines that fail to decode are skipped.
func (s *EventStream) Next() (Event, error) {
	for {
		line, err := readLine(s.reader)
		if err != nil {
			return Event{}, err
		}
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		return ev, nil
	}
}

// Close closes the connection; a blocked Next returns an error.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
