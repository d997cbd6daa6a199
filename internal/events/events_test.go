package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/wallet-engine/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

type recorder struct {
	got []Event
	err error
}

func (r *recorder) Publish(ctx context.Context, e Event) error {
	r.got = append(r.got, e)
	return r.err
}

func transfer() models.Transaction {
	a, b := "alice", "bob"
	return models.Transaction{
		ID: "01JTXN", Type: models.TxnTransfer, SenderID: &a, ReceiverID: &b,
		Amount: 1000, Fee: 5, Status: models.TxnCompleted,
	}
}

func TestKafkaMessage(t *testing.T) {
	w := &fakeWriter{}
	k := &Kafka{w: w}
	require.NoError(t, k.Publish(context.Background(), NewEvent(transfer())))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "01JTXN", string(msg.Key))
	assert.Equal(t, "transaction.completed", string(msg.Headers[0].Value))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "transaction.completed", body["event_type"])
	txn := body["transaction"].(map[string]any)
	assert.Equal(t, "10.00", txn["amount"])
	assert.Equal(t, "0.05", txn["fee"])
}

func TestRecipients(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob"}, NewEvent(transfer()).Recipients())

	u := "carol"
	funded := models.Transaction{Type: models.TxnAddFunds, ReceiverID: &u}
	assert.Equal(t, []string{"carol"}, NewEvent(funded).Recipients())
}

func TestFanoutKeepsGoingAfterFailure(t *testing.T) {
	bad := &recorder{err: errors.New("broker down")}
	good := &recorder{}
	f := NewFanout().Add("bad", bad).Add("good", good)

	err := f.Publish(context.Background(), NewEvent(transfer()))
	assert.Error(t, err)
	assert.Len(t, bad.got, 1)
	assert.Len(t, good.got, 1)
}
