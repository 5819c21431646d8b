package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeouts_Bound(t *testing.T) {
	to := DefaultTimeouts()

	ctx, cancel := to.WriteContext(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultWriteTimeout), deadline, time.Second)

	ctx, cancel = to.QueryContext(context.Background())
	defer cancel()
	deadline, ok = ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultQueryTimeout), deadline, time.Second)
}

func TestTimeouts_ZeroKeepsParent(t *testing.T) {
	ctx, cancel := Timeouts{}.QueryContext(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	parent, parentCancel := context.WithTimeout(context.Background(), time.Minute)
	defer parentCancel()
	ctx, cancel = Timeouts{Write: time.Hour}.WriteContext(parent)
	defer cancel()
	pd, _ := parent.Deadline()
	d, _ := ctx.Deadline()
	assert.Equal(t, pd, d)
}

func TestTimeouts_CancelReleases(t *testing.T) {
	ctx, cancel := DefaultTimeouts().WriteContext(context.Background())
	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
