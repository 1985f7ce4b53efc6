package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client talks to a running server's status socket.
type Client struct {
	httpClient *http.Client
	socketPath string
}

// NewClient creates a client for the server of the project rooted at root.
func NewClient(root string) *Client {
	return NewClientWithSocket(SocketPathForRoot(root))
}

// NewClientWithSocket creates a client for a custom socket path.
func NewClientWithSocket(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: 10 * time.Second},
		socketPath: socketPath,
	}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// IsServerRunning checks if the server is accessible
func (c *Client) IsServerRunning() bool {
	_, err := c.Ping()
	return err == nil
}

func (c *Client) call(method, endpoint string, out any) error {
	req, err := http.NewRequest(method, "http://unix"+endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ping sends a health check to the server
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.call(http.MethodPost, "/ping", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStatus retrieves the session status
func (c *Client) GetStatus() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(http.MethodGet, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the server to end its session
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call(http.MethodPost, "/shutdown", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
