package ipc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bnema/omapdss/internal/logger"
)

// DefaultTimeout bounds one request round trip
const DefaultTimeout = 5 * time.Second

// ErrNotRunning is returned when no driver listens on the socket
var ErrNotRunning = errors.New("omapdss is not running")

// Client handles IPC communication with a running driver
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client. An empty path selects the default socket and a
// zero timeout DefaultTimeout.
func NewClient(socketPath string, timeout time.Duration) (*Client, error) {
	if socketPath == "" {
		var err error
		socketPath, err = GetSocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get socket path: %w", err)
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{socketPath: socketPath, timeout: timeout}, nil
}

// Send performs one request. A response carrying a server error is returned
// together with that error.
func (c *Client) Send(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to omapdss: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, req); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	var resp Response
	if err := readMessage(conn, &resp); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &resp, resp.Err()
}

// Status fetches the driver status
func (c *Client) Status() (*Response, error) {
	return c.Send(&Request{Op: OpStatus})
}

// IsRunning reports whether a driver answers on the socket
func (c *Client) IsRunning() bool {
	_, err := c.Status()
	return err == nil
}

// isConnectionRefused checks if the error is a dial error
func isConnectionRefused(err error) bool {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return netErr.Op == "dial"
	}
	return false
}
