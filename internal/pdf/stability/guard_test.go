package stability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
)

func TestRun_ReturnsResult(t *testing.T) {
	g := NewGuard(nil, 0)
	v, err := Run(context.Background(), g, "ok", time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRun_RecoversPanic(t *testing.T) {
	g := NewGuard(nil, 2)
	_, err := Run(context.Background(), g, "page", 0, func(ctx context.Context) (string, error) {
		panic("malformed content stream")
	})
	require.Error(t, err)
	assert.True(t, pdferrors.IsType(err, pdferrors.ErrorTypePageProcessing))
	assert.Contains(t, err.Error(), "malformed content stream")
	assert.Equal(t, 1, g.PanicCount())
	assert.Equal(t, "page", g.Panics()[0].Operation)
}

func TestRun_Timeout(t *testing.T) {
	g := NewGuard(nil, 0)
	_, err := Run(context.Background(), g, "ocr", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(500 * time.Millisecond)
		return 1, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pdferrors.ErrTimeout))
}

func TestRun_TimeoutCancelsContext(t *testing.T) {
	g := NewGuard(nil, 0)
	stopped := make(chan error, 1)
	_, err := Run(context.Background(), g, "page", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		stopped <- ctx.Err()
		return 0, ctx.Err()
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pdferrors.ErrTimeout))

	select {
	case cerr := <-stopped:
		assert.ErrorIs(t, cerr, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("fn context was not cancelled")
	}
}

func TestProtect(t *testing.T) {
	g := NewGuard(nil, 1)
	err := g.Protect("shape", func() error { panic("bad shape") })
	require.Error(t, err)

	err = g.Protect("shape", func() error { panic("another") })
	require.Error(t, err)
	assert.Equal(t, 1, g.PanicCount())
	assert.Equal(t, "another", g.Panics()[0].Message)

	assert.NoError(t, g.Protect("shape", func() error { return nil }))
}
