package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveViewNext(t *testing.T) {
	v := newLiveView()

	_, ok, err := v.Next()
	assert.False(t, ok)
	assert.NoError(t, err)

	v.pushText("a")
	v.pushText("b")
	v.pushEnd()

	for _, want := range []string{"a", "b", ""} {
		text, ok, err := v.Next()
		require.True(t, ok)
		require.NoError(t, err)
		assert.Equal(t, want, text)
	}

	_, ok, _ = v.Next()
	assert.False(t, ok)
}

func TestLiveViewWaitAfterFinish(t *testing.T) {
	ctx := testCtx(t)
	v := newLiveView()
	v.pushText("x")
	v.pushEnd()

	text, err := v.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", text)

	text, err = v.Wait(ctx)
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = v.Wait(ctx)
	assert.ErrorIs(t, err, ErrTurnFinished)
}

func TestLiveViewWaitBlocksUntilPush(t *testing.T) {
	ctx := testCtx(t)
	v := newLiveView()

	go func() {
		time.Sleep(10 * time.Millisecond)
		v.pushText("late")
	}()

	text, err := v.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", text)
}

func TestLiveViewWaitContext(t *testing.T) {
	v := newLiveView()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLiveViewCollectError(t *testing.T) {
	ctx := testCtx(t)
	v := newLiveView()
	boom := errors.New("boom")
	v.pushText("par")
	v.pushText("tial")
	v.pushErr(boom)

	var seen []string
	text, err := v.Collect(ctx, func(s string) { seen = append(seen, s) })
	assert.Equal(t, "partial", text)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"par", "tial"}, seen)

	_, err = v.Wait(ctx)
	assert.ErrorIs(t, err, ErrTurnFinished)
}

func TestLiveViewUpdates(t *testing.T) {
	v := newLiveView()
	v.pushText("a")
	v.pushText("b")

	select {
	case <-v.Updates():
	default:
		t.Fatal("expected an update signal")
	}

	text, ok, _ := v.Next()
	require.True(t, ok)
	assert.Equal(t, "a", text)
	text, ok, _ = v.Next()
	require.True(t, ok)
	assert.Equal(t, "b", text)
}

func TestStatusCell(t *testing.T) {
	c := newStatusCell()
	assert.Equal(t, StatusUsable, c.Load())
	assert.False(t, c.requestCancel())

	require.True(t, c.reserve())
	assert.False(t, c.reserve())
	assert.Equal(t, StatusBusy, c.Load())

	idle := c.idleCh()
	select {
	case <-idle:
		t.Fatal("idle channel closed while busy")
	default:
	}

	require.True(t, c.requestCancel())
	assert.Equal(t, StatusCancelRequested, c.Load())
	assert.False(t, c.reserve())

	c.release()
	assert.Equal(t, StatusUsable, c.Load())
	select {
	case <-idle:
	default:
		t.Fatal("idle channel not closed after release")
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "usable", StatusUsable.String())
	assert.Equal(t, "busy", StatusBusy.String())
	assert.Equal(t, "cancel_requested", StatusCancelRequested.String())
}
