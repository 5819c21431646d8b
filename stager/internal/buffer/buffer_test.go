package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

const doctors = "postgres-source.public.doctors"

func cp(topic string, partition int, offset int64) messaging.Checkpoint {
	return messaging.Checkpoint{Topic: topic, Partition: partition, Offset: offset}
}

func TestNewSet_DefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultThreshold, NewSet(0).Threshold())
	assert.Equal(t, DefaultThreshold, NewSet(-3).Threshold())
	assert.Equal(t, 4, NewSet(4).Threshold())
}

func TestSet_ThresholdCrossing(t *testing.T) {
	const threshold = 3
	s := NewSet(threshold)

	readyAt := 0
	for i := 1; i <= threshold; i++ {
		n := s.Append(doctors, convert.Record{"doctor_id": i}, cp(doctors, 0, int64(i)))
		assert.Equal(t, i, n)
		if s.Ready(doctors) {
			require.Zero(t, readyAt, "ready more than once")
			readyAt = i
		}
	}
	assert.Equal(t, threshold, readyAt)

	s.Clear(doctors)
	assert.Zero(t, s.Len(doctors))
	assert.False(t, s.Ready(doctors))
	assert.Empty(t, s.Checkpoints(doctors))
}

func TestSet_SnapshotIsCopy(t *testing.T) {
	s := NewSet(10)
	s.Append(doctors, convert.Record{"doctor_id": 1}, cp(doctors, 0, 1))
	s.Append(doctors, convert.Record{"doctor_id": 2}, cp(doctors, 0, 2))

	snap := s.Snapshot(doctors)
	require.Len(t, snap, 2)
	assert.Equal(t, 1, snap[0]["doctor_id"])
	assert.Equal(t, 2, snap[1]["doctor_id"])

	snap[0] = nil
	assert.NotNil(t, s.Snapshot(doctors)[0])
	assert.Nil(t, s.Snapshot("unknown"))
}

func TestSet_TablesAreIndependent(t *testing.T) {
	s := NewSet(2)
	s.Append(doctors, convert.Record{}, cp(doctors, 0, 1))
	s.Append("postgres-source.public.patients", convert.Record{}, cp("postgres-source.public.patients", 0, 1))
	s.Append(doctors, convert.Record{}, cp(doctors, 0, 2))

	assert.True(t, s.Ready(doctors))
	assert.False(t, s.Ready("postgres-source.public.patients"))
	assert.Equal(t, 3, s.Total())
}

func TestSet_Checkpoints(t *testing.T) {
	s := NewSet(10)
	s.Append(doctors, convert.Record{}, cp(doctors, 1, 40))
	s.Append(doctors, convert.Record{}, cp(doctors, 0, 7))
	s.Track(doctors, cp(doctors, 0, 9))
	s.Track(doctors, cp(doctors, 1, 12))

	assert.Equal(t, []messaging.Checkpoint{
		cp(doctors, 0, 9),
		cp(doctors, 1, 40),
	}, s.Checkpoints(doctors))
	assert.Equal(t, 2, s.Len(doctors))
}

func TestSet_TrackOnlyTable(t *testing.T) {
	s := NewSet(10)
	s.Track("postgres-source.public.visits", cp("postgres-source.public.visits", 0, 3))

	assert.Equal(t, []string{"postgres-source.public.visits"}, s.Tables())
	assert.Empty(t, s.NonEmpty())
	assert.Zero(t, s.Len("postgres-source.public.visits"))
}

func TestSet_NonEmptySorted(t *testing.T) {
	s := NewSet(10)
	for _, table := range []string{"t.visits", "t.billing_payments", "t.doctors"} {
		s.Append(table, convert.Record{}, cp(table, 0, 0))
	}
	assert.Equal(t, []string{"t.billing_payments", "t.doctors", "t.visits"}, s.NonEmpty())

	stats := s.Stats()
	require.Len(t, stats, 3)
	assert.Equal(t, "t.billing_payments", stats[0].Table)
	assert.Equal(t, 1, stats[0].Records)
	assert.Equal(t, []messaging.Checkpoint{cp("t.billing_payments", 0, 0)}, stats[0].Checkpoints)
}
