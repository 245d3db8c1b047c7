package gate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nhooyr.io/websocket"
)

// Conn is a duplex text channel to the queue.
type Conn interface {
	Write(ctx context.Context, text string) error
	// Read blocks until a message arrives or ctx is done.
	Read(ctx context.Context) (string, error)
	Close() error
}

// Dialer opens a Conn.
//
// note: fault injection point
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer is the standard implementation of Dialer.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, res, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		// a rejected handshake usually explains itself in the body
		if res != nil && res.Body != nil {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
			res.Body.Close()
			if text := strings.TrimSpace(string(body)); text != "" {
				return nil, fmt.Errorf("%w: %s", err, text)
			}
		}
		return nil, err
	}
	return websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c websocketConn) Write(ctx context.Context, text string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (c websocketConn) Read(ctx context.Context) (string, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c websocketConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
