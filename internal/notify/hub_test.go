package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/wallet-engine/internal/events"
	"github.com/baharkarakas/wallet-engine/internal/models"
)

func TestHubDeliversToRecipients(t *testing.T) {
	hub := NewHub([]string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=bob"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections("bob") == 1 }, time.Second, 5*time.Millisecond)

	a, b := "alice", "bob"
	rec := models.Transaction{ID: "01JTXN", Type: models.TxnTransfer, SenderID: &a, ReceiverID: &b, Amount: 2500, Status: models.TxnCompleted}
	require.NoError(t, hub.Publish(context.Background(), events.NewEvent(rec)))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got events.Event
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "transaction.completed", got.Type)
	assert.Equal(t, "01JTXN", got.Transaction.ID)
	assert.Equal(t, "25.00", got.Transaction.Amount.String())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections("bob") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"https://wallet.example"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, "bob")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
