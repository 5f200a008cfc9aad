package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("redis", Ping(func(context.Context) error { return nil }))
	c.Register("store:venue", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "not built"}
	})

	r := c.Run(context.Background(), time.Second)
	assert.Equal(t, StatusDegraded, r.Status)
	require.Len(t, r.Components, 2)
	assert.Equal(t, "redis", r.Components[0].Name)
	assert.Equal(t, StatusUp, r.Components[0].Status)
	assert.Equal(t, "store:venue", r.Components[1].Name)

	c.Register("postgres", Ping(func(context.Context) error { return errors.New("connection refused") }))
	r = c.Run(context.Background(), time.Second)
	assert.Equal(t, StatusDown, r.Status)
	assert.Equal(t, "postgres", r.Components[0].Name)
	assert.Equal(t, "connection refused", r.Components[0].Message)
}

func TestRunBoundsEachCheck(t *testing.T) {
	c := NewChecker()
	c.Register("kafka", Ping(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r := c.Run(context.Background(), 10*time.Millisecond)
	assert.Equal(t, StatusDown, r.Status)
	assert.Contains(t, r.Components[0].Message, "deadline")
}

func TestEmptyCheckerIsUp(t *testing.T) {
	r := NewChecker().Run(context.Background(), time.Second)
	assert.Equal(t, StatusUp, r.Status)
	assert.Empty(t, r.Components)
}
