package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
)

// Client sends single requests to a running daemon.
type Client struct {
	Path string
}

// NewClient creates a Client for the socket at path
func NewClient(path string) *Client {
	return &Client{Path: path}
}

// Call sends req and waits for the response. A response carrying an
// error is returned as-is; only transport failures produce err.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.Path)
	if err != nil {
		return Response{}, fmt.Errorf("connect to daemon: %w (is `relayctl serve` running?)", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}
