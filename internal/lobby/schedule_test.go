// internal/lobby/schedule_test.go
package lobby

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/stretchr/testify/assert"
)

const tick = 10 * time.Millisecond

func TestScheduledTaskRuns(t *testing.T) {
	l := storeLobby("AAAAAA", "BBBBBB", "Alpha", false)
	var ran atomic.Bool

	l.Mu.Lock()
	l.scheduleUnsafe("test", tick, func() { ran.Store(true) })
	assert.Equal(t, "test", l.pendingTaskUnsafe())
	l.Mu.Unlock()

	assert.Eventually(t, ran.Load, time.Second, tick)
	l.Mu.Lock()
	assert.Empty(t, l.pendingTaskUnsafe())
	l.Mu.Unlock()
}

func TestScheduledTaskReplacedByNewer(t *testing.T) {
	l := storeLobby("AAAAAA", "BBBBBB", "Alpha", false)
	var first, second atomic.Bool

	l.Mu.Lock()
	l.scheduleUnsafe("first", tick, func() { first.Store(true) })
	l.scheduleUnsafe("second", 2*tick, func() { second.Store(true) })
	l.Mu.Unlock()

	assert.Eventually(t, second.Load, time.Second, tick)
	assert.False(t, first.Load())
}

func TestScheduledTaskSkippedWhenRoundMovedOn(t *testing.T) {
	l := storeLobby("AAAAAA", "BBBBBB", "Alpha", false)
	var ran atomic.Bool

	l.Mu.Lock()
	l.scheduleUnsafe("test", tick, func() { ran.Store(true) })
	l.Round.Phase = game.PhaseClues
	l.Mu.Unlock()

	time.Sleep(5 * tick)
	assert.False(t, ran.Load())
}

func TestScheduledTaskSkippedWhenRoundReplaced(t *testing.T) {
	l := storeLobby("AAAAAA", "BBBBBB", "Alpha", false)
	var ran atomic.Bool

	l.Mu.Lock()
	l.Round.Phase = game.PhaseFraudGuessResult
	l.Round.RoundID = "ROUND001"
	l.scheduleUnsafe("test", tick, func() { ran.Store(true) })
	l.Round.RoundID = "ROUND002"
	l.Mu.Unlock()

	time.Sleep(5 * tick)
	assert.False(t, ran.Load())
}

func TestScheduledTaskSkippedWhenClosedOrCancelled(t *testing.T) {
	closed := storeLobby("AAAAAA", "BBBBBB", "Alpha", false)
	cancelled := storeLobby("CCCCCC", "DDDDDD", "Beta", false)
	var ran atomic.Int32

	closed.Mu.Lock()
	closed.scheduleUnsafe("test", tick, func() { ran.Add(1) })
	closed.closed = true
	closed.Mu.Unlock()

	cancelled.Mu.Lock()
	cancelled.scheduleUnsafe("test", tick, func() { ran.Add(1) })
	cancelled.cancelTaskUnsafe()
	cancelled.cancelTaskUnsafe()
	cancelled.Mu.Unlock()

	time.Sleep(5 * tick)
	assert.Zero(t, ran.Load())
}
