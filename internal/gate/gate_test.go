package gate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"seatgrab/internal/components/telemetry"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type fakeConn struct {
	pushes  []string
	readErr error
	written []string
	closed  bool
}

func (c *fakeConn) Write(ctx context.Context, text string) error {
	c.written = append(c.written, text)
	return nil
}

func (c *fakeConn) Read(ctx context.Context) (string, error) {
	if len(c.pushes) > 0 {
		next := c.pushes[0]
		c.pushes = c.pushes[1:]
		return next, nil
	}
	if c.readErr != nil {
		return "", c.readErr
	}
	<-ctx.Done()
	return "", ctx.Err()
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeDialer struct {
	conn   *fakeConn
	err    error
	header http.Header
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.header = header
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func newTestClient(dialer Dialer) *Client {
	return NewClient(dialer, Options{
		Url:            "wss://queue.example/ws",
		Header:         http.Header{"User-Agent": {"test"}},
		ReceiveTimeout: 50 * time.Millisecond,
	}, telemetry.NewSlogAPI(nil))
}

func TestJoinQueueAnswers(t *testing.T) {
	table := []struct {
		name     string
		pushes   []string
		expected Result
	}{
		{name: "ok", pushes: []string{`{"code":0,"msg":"ok"}`}, expected: Admitted},
		{name: "queued", pushes: []string{`{"msg":"排队成功"}`}, expected: Admitted},
		{name: "already queued", pushes: []string{`{"msg":"当前已经在队列中"}`}, expected: Admitted},
		{name: "already reserved", pushes: []string{`{"msg":"您已经预定了座位"}`}, expected: AlreadySatisfied},
		{name: "verification failed", pushes: []string{`{"msg":"验证失败"}`}, expected: SessionInvalid},
		{name: "invalid session english", pushes: []string{`{"msg":"Invalid Session"}`}, expected: SessionInvalid},
		{name: "non json is scanned", pushes: []string{`queue: 验证失败`}, expected: SessionInvalid},
		{name: "keeps waiting past noise", pushes: []string{`{"msg":"waiting"}`, `hello`, `{"msg":"ok"}`}, expected: Admitted},
		{name: "silence", pushes: nil, expected: Undetermined},
		{name: "only noise", pushes: []string{`{"msg":"waiting"}`}, expected: Undetermined},
		{name: "ok must be the whole message", pushes: []string{`{"msg":"token ok? no"}`}, expected: Undetermined},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			conn := &fakeConn{pushes: row.pushes}
			dialer := &fakeDialer{conn: conn}
			client := newTestClient(dialer)

			var narrated []string
			admission := client.JoinQueue(context.Background(), "Authorization=abc", func(text string) {
				narrated = append(narrated, text)
			})

			require.Equal(t, row.expected, admission.Result)
			require.True(t, conn.closed)
			require.Equal(t, []string{`{"ns":"prereserve/queue","msg":""}`}, conn.written)
			require.Equal(t, "Authorization=abc", dialer.header.Get("Cookie"))
			require.Equal(t, "test", dialer.header.Get("User-Agent"))
			require.Equal(t, "admission queue connection closed", narrated[len(narrated)-1])
		})
	}
}

func TestJoinQueueConnectFailure(t *testing.T) {
	admission := newTestClient(&fakeDialer{err: errors.New("dial tcp: connection refused")}).
		JoinQueue(context.Background(), "c=1", nil)
	require.Equal(t, Undetermined, admission.Result)

	admission = newTestClient(&fakeDialer{err: errors.New("handshake rejected: invalid session")}).
		JoinQueue(context.Background(), "c=1", nil)
	require.Equal(t, SessionInvalid, admission.Result)
}

func TestJoinQueueDrop(t *testing.T) {
	conn := &fakeConn{readErr: errors.New("connection to remote host was lost")}
	admission := newTestClient(&fakeDialer{conn: conn}).JoinQueue(context.Background(), "c=1", nil)
	require.Equal(t, SessionInvalid, admission.Result)
	require.True(t, conn.closed)

	conn = &fakeConn{readErr: errors.New("unexpected EOF")}
	admission = newTestClient(&fakeDialer{conn: conn}).JoinQueue(context.Background(), "c=1", nil)
	require.Equal(t, Undetermined, admission.Result)
	require.True(t, conn.closed)
}

func TestJoinQueueWebsocket(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		_, data, err := conn.Read(ctx)
		if err != nil || !strings.Contains(string(data), "prereserve/queue") {
			return
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"msg":"排队成功"}`))
		// wait for the client to hang up
		_, _, _ = conn.Read(ctx)
	}))
	defer srv.Close()

	client := NewClient(WebsocketDialer{}, Options{
		Url: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, telemetry.NewSlogAPI(nil))

	admission := client.JoinQueue(context.Background(), "Authorization=abc", nil)
	require.Equal(t, Admitted, admission.Result)
	require.Equal(t, "排队成功", admission.Reason)
	require.Equal(t, "Authorization=abc", cookie)
}

func TestJoinQueueWebsocketRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("access denied"))
	}))
	defer srv.Close()

	client := NewClient(WebsocketDialer{}, Options{
		Url: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, telemetry.NewSlogAPI(nil))

	admission := client.JoinQueue(context.Background(), "c=1", nil)
	require.Equal(t, SessionInvalid, admission.Result)
}
