package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSSubscriber_SendAndClose(t *testing.T) {
	subs := make(chan *WSSubscriber, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := NewWSSubscriber(conn, time.Second)
		subs <- s
		_ = s.ReadLoop()
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	var s *WSSubscriber
	select {
	case s = <-subs:
	case <-time.After(2 * time.Second):
		t.Fatal("no upgrade")
	}

	require.NoError(t, s.Send(context.Background(), []byte(`{"msgType":"SMSMailingStatus"}`)))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.JSONEq(t, `{"msgType":"SMSMailingStatus"}`, string(msg))

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Error(t, s.Send(context.Background(), []byte("late")))
}
