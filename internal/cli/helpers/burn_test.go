package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBurn(t *testing.T) {
	start := time.Now()
	n := Burn(context.Background(), 5*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	assert.Positive(t, n)
	assert.Zero(t, Burn(context.Background(), 0))
}

func TestBurn_StopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	Burn(ctx, time.Minute)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Error(t, ctx.Err())
}
