package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a thin wrapper over a Unix domain socket connection to
// myqueued, used by the CLI front end.
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon's socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", path, err)
	}
	return &Client{conn: conn}, nil
}

// Call sends one request frame and returns the decoded response. If the
// server replies with an Error envelope, Call returns its message as an
// error.
func (c *Client) Call(reqType MsgType, req any, respType MsgType, resp any) error {
	if err := WriteFrame(c.conn, reqType, req); err != nil {
		return err
	}

	typ, payload, err := ReadFrame(c.conn)
	if err != nil {
		return fmt.Errorf("ipc: read response: %w", err)
	}

	if typ == MsgError {
		var errResp ErrorResponse
		if decodeErr := DecodePayload(payload, &errResp); decodeErr != nil {
			return fmt.Errorf("ipc: server error (undecodable payload)")
		}
		return errResp
	}

	if typ != respType {
		return fmt.Errorf("ipc: unexpected response type %s (wanted %s)", typ, respType)
	}
	if resp != nil {
		return DecodePayload(payload, resp)
	}
	return nil
}

// Subscribe sends a Subscribe request and leaves the connection open so the
// caller can keep reading pushed SubscribeEvent frames with Next.
func (c *Client) Subscribe() error {
	return WriteFrame(c.conn, MsgSubscribe, struct{}{})
}

// Next blocks for the next event frame on a Subscribe connection.
func (c *Client) Next() (SubscribeEvent, error) {
	var event SubscribeEvent
	typ, payload, err := ReadFrame(c.conn)
	if err != nil {
		return event, err
	}
	if typ != MsgSubscribe {
		return event, fmt.Errorf("ipc: unexpected frame type %s on subscribe stream", typ)
	}
	err = json.Unmarshal(payload, &event)
	return event, err
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
