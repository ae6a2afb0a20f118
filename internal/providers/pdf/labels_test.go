package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLabelsProducesPDF(t *testing.T) {
	p := New()

	r, err := p.GenerateLabels(context.Background(), []string{
		"CEM-P1-20240307-B100-00001",
		"CEM-P1-20240307-B100-00002",
		"CEM-P1-20240307-B100-00003",
		"CEM-P1-20240307-B100-00004",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateLabelsRejectsEmpty(t *testing.T) {
	p := New()

	_, err := p.GenerateLabels(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoLabels)

	_, err = p.GenerateLabels(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrNoLabels)
}

func TestGenerateLabelsHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().GenerateLabels(ctx, []string{"CEM-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
