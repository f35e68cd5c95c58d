package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// signatureServer answers signatureSubscribe and immediately notifies with notifyErr.
func signatureServer(t *testing.T, notifyErr interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var subID int64 = 100
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(message, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}
			if req.Method != "signatureSubscribe" {
				t.Errorf("expected signatureSubscribe, got %s", req.Method)
				return
			}

			subID++
			conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"result":  subID,
			})
			conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "signatureNotification",
				"params": map[string]interface{}{
					"subscription": subID,
					"result": map[string]interface{}{
						"context": map[string]interface{}{"slot": 5207624},
						"value":   map[string]interface{}{"err": notifyErr},
					},
				},
			})
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_SignatureSubscribe(t *testing.T) {
	server := signatureServer(t, nil)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	ch, err := client.SignatureSubscribe(ctx, "sig1")
	require.NoError(t, err)

	select {
	case n, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, "sig1", n.Signature)
		assert.Equal(t, int64(5207624), n.Slot)
		assert.Nil(t, n.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after the notification")
}

func TestWSClient_SignatureSubscribe_TransactionError(t *testing.T) {
	server := signatureServer(t, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	ch, err := client.SignatureSubscribe(ctx, "sig2")
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.NotNil(t, n.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	// Server accepts the connection but never answers.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), &cfg, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.SignatureSubscribe(ctx, "sig3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestWSClient_CloseIdempotent(t *testing.T) {
	server := signatureServer(t, nil)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.SignatureSubscribe(context.Background(), "sig4")
	assert.Error(t, err)
}

func TestWSClient_SignatureUnsubscribe(t *testing.T) {
	unsubscribed := make(chan wsRequest, 1)

	// Server acknowledges subscriptions but never notifies.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if err := json.Unmarshal(message, &req); err != nil {
				return
			}
			switch req.Method {
			case "signatureSubscribe":
				conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 7})
			case "signatureUnsubscribe":
				unsubscribed <- req
				conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	ch, err := client.SignatureSubscribe(ctx, "sig5")
	require.NoError(t, err)

	require.NoError(t, client.SignatureUnsubscribe(ctx, "sig5"))

	select {
	case req := <-unsubscribed:
		require.Len(t, req.Params, 1)
		assert.Equal(t, float64(7), req.Params[0])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for signatureUnsubscribe")
	}

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	client.subsMu.Lock()
	assert.Empty(t, client.subs)
	assert.Empty(t, client.sigs)
	client.subsMu.Unlock()

	assert.NoError(t, client.SignatureUnsubscribe(ctx, "unknown"))
}
