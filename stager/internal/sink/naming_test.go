package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortName(t *testing.T) {
	assert.Equal(t, "doctors", ShortName("postgres-source.public.doctors"))
	assert.Equal(t, "patients", ShortName("patients"))
	assert.Equal(t, "", ShortName("trailing."))
}

func TestNamer_Format(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.UTC)
	n := NewNamer("debezium", func() time.Time { return at })

	assert.Equal(t, "debezium/doctors/doctors_20240309_140507_123456.json", n.Next("postgres-source.public.doctors"))
}

func TestNamer_NoPrefix(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	n := NewNamer("/", func() time.Time { return at })

	assert.Equal(t, "visits/visits_20240309_140507_000000.json", n.Next("visits"))
}

func TestNamer_StrictlyIncreasing(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	n := NewNamer("debezium", func() time.Time { return at })

	first := n.Next("postgres-source.public.doctors")
	second := n.Next("postgres-source.public.doctors")
	other := n.Next("postgres-source.public.patients")

	assert.NotEqual(t, first, second)
	assert.Less(t, first, second)
	assert.Equal(t, "debezium/doctors/doctors_20240309_140507_000001.json", second)
	assert.Equal(t, "debezium/patients/patients_20240309_140507_000000.json", other)
}

func TestNamer_ClockStepsBack(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 500000000, time.UTC)
	n := NewNamer("p", func() time.Time { return at })

	first := n.Next("doctors")
	at = at.Add(-time.Second)
	second := n.Next("doctors")

	assert.Less(t, first, second)
}
