package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"

	"github.com/boristopalov/sciworld/pkg/core"
	"github.com/boristopalov/sciworld/pkg/gateway"
)

// WSClient keeps one websocket open to the gateway and issues one frame at a time.
type WSClient struct {
	conn *websocket.Conn

	mu  sync.Mutex
	seq int
}

var _ core.Env = (*WSClient)(nil)

// WSURL turns a gateway base URL (http or https) into its websocket endpoint.
func WSURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", goerr.Wrap(err, "invalid gateway url", goerr.Value("url", baseURL))
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws"
	if sessionID != "" {
		q := u.Query()
		q.Set(gateway.SessionQuery, sessionID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func DialWS(ctx context.Context, baseURL, sessionID string) (*WSClient, error) {
	wsURL, err := WSURL(baseURL, sessionID)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, goerr.Wrap(core.ErrTransport, "websocket dial failed",
			goerr.Value("url", wsURL), goerr.Value("cause", err.Error()))
	}
	return &WSClient{conn: conn}, nil
}

func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *WSClient) ListTasks(ctx context.Context) (core.TaskList, error) {
	reply, err := c.roundTrip(ctx, gateway.Frame{Type: gateway.FrameTasks})
	if err != nil {
		return nil, err
	}
	return reply.Tasks, nil
}

func (c *WSClient) Load(ctx context.Context, name string, variation int) (*core.Snapshot, error) {
	reply, err := c.roundTrip(ctx, gateway.Frame{Type: gateway.FrameLoad, Name: name, Variation: variation})
	if err != nil {
		return nil, err
	}
	return reply.Snapshot, nil
}

func (c *WSClient) Step(ctx context.Context, action string) (*core.Snapshot, error) {
	reply, err := c.roundTrip(ctx, gateway.Frame{Type: gateway.FrameStep, Action: action})
	if err != nil {
		return nil, err
	}
	return reply.Snapshot, nil
}

func (c *WSClient) roundTrip(ctx context.Context, f gateway.Frame) (*gateway.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	f.ID = strconv.Itoa(c.seq)

	// zero deadline when ctx has none
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	if err := c.conn.WriteJSON(f); err != nil {
		return nil, goerr.Wrap(core.ErrTransport, "websocket write failed",
			goerr.Value("type", f.Type), goerr.Value("cause", err.Error()))
	}

	var reply gateway.Reply
	if err := c.conn.ReadJSON(&reply); err != nil {
		return nil, goerr.Wrap(core.ErrTransport, "websocket read failed",
			goerr.Value("type", f.Type), goerr.Value("cause", err.Error()))
	}
	if reply.ID != f.ID {
		return nil, goerr.Wrap(core.ErrTransport, "reply out of order",
			goerr.Value("want", f.ID), goerr.Value("got", reply.ID))
	}
	if reply.Type == gateway.FrameError {
		body := gateway.ErrorBody{Code: gateway.CodeEngine, Message: "unknown error"}
		if reply.Error != nil {
			body = *reply.Error
		}
		return nil, goerr.Wrap(body.Sentinel(), body.Message,
			goerr.Value("type", f.Type), goerr.Value("code", body.Code))
	}
	if (f.Type == gateway.FrameLoad || f.Type == gateway.FrameStep) && reply.Snapshot == nil {
		return nil, goerr.Wrap(core.ErrTransport, "reply without snapshot", goerr.Value("type", f.Type))
	}
	return &reply, nil
}
