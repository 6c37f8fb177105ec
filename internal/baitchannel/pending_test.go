package baitchannel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingTable_PutRejectsDuplicate(t *testing.T) {
	table := NewPendingTable()
	key := Key{UserID: "u", MessageID: "m"}

	assert.True(t, table.Put(&PendingDecision{Key: key}))
	assert.False(t, table.Put(&PendingDecision{Key: key}))
	assert.Equal(t, 1, table.Len())
}

func TestPendingTable_TakeOnce(t *testing.T) {
	table := NewPendingTable()
	key := Key{UserID: "u", MessageID: "m"}
	require.True(t, table.Put(&PendingDecision{Key: key}))

	d, ok := table.Take(key)
	require.True(t, ok)
	assert.Equal(t, key, d.Key)

	_, ok = table.Take(key)
	assert.False(t, ok)
	_, ok = table.TakeByMessage("m")
	assert.False(t, ok)
	assert.False(t, table.Has(key))
}

func TestPendingTable_AttachAfterTakeFails(t *testing.T) {
	table := NewPendingTable()
	key := Key{UserID: "u", MessageID: "m"}
	require.True(t, table.Put(&PendingDecision{Key: key}))

	timer := &fakeTimer{}
	assert.True(t, table.Attach(key, "w1", timer))

	d, ok := table.TakeByMessage("m")
	require.True(t, ok)
	assert.Equal(t, "w1", d.WarningMessageID)

	assert.False(t, table.Attach(key, "w2", &fakeTimer{}))
}

func TestPendingTable_DrainStopsTimers(t *testing.T) {
	table := NewPendingTable()
	var timers []*fakeTimer
	for i := 0; i < 5; i++ {
		key := Key{UserID: "u", MessageID: fmt.Sprint(i)}
		require.True(t, table.Put(&PendingDecision{Key: key}))
		timer := &fakeTimer{}
		timers = append(timers, timer)
		require.True(t, table.Attach(key, "", timer))
	}

	assert.Len(t, table.Drain(), 5)
	assert.Equal(t, 0, table.Len())
	for _, timer := range timers {
		assert.True(t, timer.stopped.Load())
	}
}

func TestPendingTable_ConcurrentTakeHasOneWinner(t *testing.T) {
	for round := 0; round < 200; round++ {
		table := NewPendingTable()
		key := Key{UserID: "u", MessageID: fmt.Sprintf("m%d", round)}
		require.True(t, table.Put(&PendingDecision{Key: key}))

		var winners atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				var ok bool
				if i%2 == 0 {
					_, ok = table.Take(key)
				} else {
					_, ok = table.TakeByMessage(key.MessageID)
				}
				if ok {
					winners.Add(1)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load(), "round %d", round)
	}
}
