package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
)

type mockPublisher struct {
	publishFunc func(ctx context.Context, subject string, data []byte) error
	closed      bool
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.publishFunc(ctx, subject, data)
}

func (m *mockPublisher) Close() error {
	m.closed = true
	return nil
}

func TestNotifier_Staged(t *testing.T) {
	var subject string
	var body []byte
	pub := &mockPublisher{publishFunc: func(ctx context.Context, s string, data []byte) error {
		subject, body = s, data
		return nil
	}}

	n := New(pub, "")
	err := n.Staged(context.Background(), StagedBatch{
		BatchID:     "b-1",
		Table:       "doctors",
		SourceTable: "postgres-source.public.doctors",
		Key:         "debezium/doctors/doctors_20240101_000000_000000.json",
		Records:     2,
		Checkpoints: []messaging.Checkpoint{{Topic: "postgres-source.public.doctors", Offset: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "cdc.staged.doctors", subject)

	var got StagedBatch
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "b-1", got.BatchID)
	assert.Equal(t, 2, got.Records)
	require.Len(t, got.Checkpoints, 1)

	require.NoError(t, n.Close())
	assert.True(t, pub.closed)
}

func TestNotifier_CustomPrefixAndError(t *testing.T) {
	pub := &mockPublisher{publishFunc: func(ctx context.Context, s string, data []byte) error {
		assert.Equal(t, "hospital.staged.billing_payments", s)
		return errors.New("nats: connection closed")
	}}

	err := New(pub, "hospital.staged").Staged(context.Background(), StagedBatch{Table: "billing_payments"})
	assert.ErrorContains(t, err, "publish hospital.staged.billing_payments")
}
