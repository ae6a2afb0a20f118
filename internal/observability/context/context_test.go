package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, context.Background(), WithRequestID(context.Background(), " "))
}

func TestActor(t *testing.T) {
	ctx := WithActor(context.Background(), "worker", "w1")
	kind, id := ActorFromContext(ctx)
	assert.Equal(t, "worker", kind)
	assert.Equal(t, "w1", id)

	kind, id = ActorFromContext(WithActor(context.Background(), "worker", ""))
	assert.Empty(t, kind)
	assert.Empty(t, id)
}
