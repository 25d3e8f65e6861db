package navd

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"codenav/internal/core/regex"
)

type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message) }

// Cancelled reports whether the server refused a removal that was not
// confirmed.
func (e *RPCError) Cancelled() bool { return e.Code == codeCancelled }

// NoDatabase reports whether the workspace database is missing.
func (e *RPCError) NoDatabase() bool { return e.Code == codeNoDatabase }

// Client is a blocking JSONL-RPC client; calls are serialized.
type Client struct {
	conn   net.Conn
	codec  *lineCodec
	mu     sync.Mutex
	nextID int64
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, codec: newLineCodec(conn)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

type rawResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

func (c *Client) call(method string, params any, out any) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("client is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req := Request{JSONRPC: "2.0", Method: method, ID: json.RawMessage(fmt.Sprintf("%d", c.nextID))}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = b
	}

	if err := c.codec.write(req); err != nil {
		return err
	}

	line, err := c.codec.read()
	if err != nil {
		return err
	}
	var resp rawResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) Ping() error {
	var out string
	if err := c.call("ping", nil, &out); err != nil {
		return err
	}
	if out != "pong" {
		return fmt.Errorf("unexpected ping result: %q", out)
	}
	return nil
}

func (c *Client) Version() (string, error) {
	var out string
	if err := c.call("version", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) WorkspaceAdd(p WorkspaceAddParams) (string, error) {
	var out string
	if err := c.call("workspace.add", p, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) Query(p QueryParams) (QueryResult, error) {
	var out QueryResult
	if err := c.call("query", p, &out); err != nil {
		return QueryResult{}, err
	}
	return out, nil
}

func (c *Client) Update(p UpdateParams) (UpdateResult, error) {
	var out UpdateResult
	if err := c.call("update", p, &out); err != nil {
		return UpdateResult{}, err
	}
	return out, nil
}

func (c *Client) Remove(p RemoveParams) error {
	return c.call("remove", p, nil)
}

func (c *Client) Translate(p TranslateParams) (string, error) {
	var out string
	if err := c.call("translate", p, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) Highlights(p HighlightsParams) ([]regex.Pattern, error) {
	var out []regex.Pattern
	if err := c.call("highlights", p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WatchStart(p WatchStartParams) (WatchStatusResult, error) {
	var out WatchStatusResult
	err := c.call("watch.start", p, &out)
	return out, err
}

func (c *Client) WatchStop(p WatchStopParams) (WatchStatusResult, error) {
	var out WatchStatusResult
	err := c.call("watch.stop", p, &out)
	return out, err
}

func (c *Client) WatchStatus(p WatchStatusParams) (WatchStatusResult, error) {
	var out WatchStatusResult
	err := c.call("watch.status", p, &out)
	return out, err
}
