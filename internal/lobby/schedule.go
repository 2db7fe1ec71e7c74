// internal/lobby/schedule.go
package lobby

import (
	"time"

	"github.com/jason-s-yu/fraud/internal/game"
)

// scheduledTask is a delayed transition owned by one lobby. A lobby holds at
// most one; scheduling a new task cancels the old one.
type scheduledTask struct {
	name    string
	phase   game.Phase
	roundID string
	timer   *time.Timer
}

// scheduleUnsafe runs fn under l.Mu after d, unless by then the lobby was
// closed, another task replaced this one, or the round moved on. Expects
// l.Mu held.
func (l *Lobby) scheduleUnsafe(name string, d time.Duration, fn func()) {
	l.cancelTaskUnsafe()
	task := &scheduledTask{
		name:    name,
		phase:   l.Round.Phase,
		roundID: l.Round.RoundID,
	}
	l.task = task
	task.timer = time.AfterFunc(d, func() {
		l.Mu.Lock()
		defer l.Mu.Unlock()
		if l.closed || l.task != task {
			return
		}
		if l.Round.Phase != task.phase || l.Round.RoundID != task.roundID {
			return
		}
		l.task = nil
		fn()
	})
}

// cancelTaskUnsafe stops the pending task, if any. Expects l.Mu held.
func (l *Lobby) cancelTaskUnsafe() {
	if l.task == nil {
		return
	}
	l.task.timer.Stop()
	l.task = nil
}

// pendingTaskUnsafe returns the name of the pending task, or "".
func (l *Lobby) pendingTaskUnsafe() string {
	if l.task == nil {
		return ""
	}
	return l.task.name
}
