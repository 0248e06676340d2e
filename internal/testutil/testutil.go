// Package testutil provides shared helpers for package tests.
package testutil

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/protocol"
)

// TestConfig returns a Config with contract defaults and a short grace
// period so timeout tests stay fast.
func TestConfig() *config.Config {
	return &config.Config{
		MaxOutputBytes:        protocol.MaxOutputBytes,
		DefaultTimeoutSeconds: 60,
		MaxTimeoutSeconds:     600,
		GracePeriodMs:         100,
		SocketMode:            "0600",
		LogLevel:              "info",
	}
}

// TestLogger returns a logger that discards everything.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Client drives one side of a line-framed protocol connection.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func NewClient(conn net.Conn) *Client {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), protocol.MaxRecordBytes)
	return &Client{conn: conn, scanner: scanner}
}

// Do sends req as one JSON line and decodes the next response line.
func (c *Client) Do(t *testing.T, req protocol.Request) protocol.Response {
	t.Helper()

	data, err := json.Marshal(req)
	require.NoError(t, err)
	return c.SendRaw(t, string(data))
}

// SendRaw writes a raw record line and decodes the next response line.
func (c *Client) SendRaw(t *testing.T, line string) protocol.Response {
	t.Helper()

	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	require.True(t, c.scanner.Scan(), "expected a response line")

	var resp protocol.Response
	require.NoError(t, json.Unmarshal(c.scanner.Bytes(), &resp))
	return resp
}
