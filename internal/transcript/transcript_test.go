// ABOUTME: Tests for the transcript store, live slot handle, and change broadcaster
// ABOUTME: Covers ordering, in-place live updates, single-open-slot invariant, subscriptions

package transcript

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendKeepsOrder(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	_, err := tr.Append(SpeakerUser, KindPlainText, "prompt")
	require.NoError(t, err)
	_, err = tr.Append(SpeakerSystem, KindQuestion, "q1")
	require.NoError(t, err)
	_, err = tr.Append(SpeakerUser, KindPlainText, "a1")
	require.NoError(t, err)

	entries := tr.Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i, e.Index)
		assert.False(t, e.Open)
	}
	assert.Equal(t, "prompt", entries[0].Text)
	assert.Equal(t, KindQuestion, entries[1].Kind)
	assert.Equal(t, SpeakerUser, entries[2].Speaker)
}

func TestTranscript_AppendRejectsLiveKind(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	_, err := tr.Append(SpeakerSystem, KindLiveUpdate, "nope")
	assert.ErrorIs(t, err, ErrLiveKind)
	assert.Equal(t, 0, tr.Len())
}

func TestTranscript_LiveSlotUpdatesInPlace(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	slot := tr.OpenLive("Doing research...")
	for _, msg := range []string{"10%", "50%", "90%"} {
		require.True(t, slot.Update(msg))
		assert.Equal(t, 1, tr.Count(KindLiveUpdate))
	}

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "90%", entries[0].Text)
	assert.True(t, entries[0].Open)
	assert.Same(t, slot, tr.Live())
}

func TestTranscript_ClosedSlotIsImmutable(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	slot := tr.OpenLive("working")
	slot.Close()
	slot.Close()

	assert.False(t, slot.Update("late"))
	assert.Nil(t, tr.Live())

	e := tr.Entries()[0]
	assert.Equal(t, "working", e.Text)
	assert.False(t, e.Open)
}

func TestTranscript_OpenLiveClosesPrevious(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	first := tr.OpenLive("first")
	second := tr.OpenLive("second")

	assert.False(t, first.Update("stale"))
	assert.True(t, second.Update("fresh"))

	entries := tr.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Open)
	assert.Equal(t, "first", entries[0].Text)
	assert.True(t, entries[1].Open)
	assert.Equal(t, 1, second.Index())
}

func TestTranscript_EntriesIsSnapshot(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	slot := tr.OpenLive("before")
	snapshot := tr.Entries()
	slot.Update("after")

	assert.Equal(t, "before", snapshot[0].Text)
}

func TestTranscript_SubscribeSeesChangesInOrder(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := tr.Subscribe(ctx)

	_, err := tr.Append(SpeakerUser, KindPlainText, "hi")
	require.NoError(t, err)
	slot := tr.OpenLive("working")
	slot.Update("still working")
	slot.Close()

	want := []Op{OpAppended, OpAppended, OpUpdated, OpClosed}
	for i, op := range want {
		select {
		case c := <-ch:
			assert.Equal(t, op, c.Op, "change %d", i)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for change %d", i)
		}
	}
}

func TestTranscript_ConcurrentUpdatesKeepSingleLiveEntry(t *testing.T) {
	tr := New(nil)
	defer tr.Close()

	slot := tr.OpenLive("start")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot.Update("tick")
			_ = tr.Entries()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tr.Count(KindLiveUpdate))
	assert.Equal(t, 1, tr.Len())
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(Change{Op: OpUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestBroadcaster_SubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster(nil)
	b.Close()
	b.Close()

	ch, _ := b.Subscribe(context.Background())
	_, ok := <-ch
	assert.False(t, ok)
}
