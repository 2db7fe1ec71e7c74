// internal/lobby/connection.go
package lobby

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/sirupsen/logrus"
)

// DefaultOutBuffer is the outbound queue size of a connection.
const DefaultOutBuffer = 64

// Connection is one client socket. The transport drains OutChan; everything
// else only writes to it, never blocking.
type Connection struct {
	ID         uuid.UUID
	RemoteAddr string
	OutChan    chan Event

	cancel func()
	logger *logrus.Logger

	mu     sync.Mutex
	closed bool
}

// NewConnection creates a connection with a buffered outbound queue. cancel,
// if set, is called on Close to stop the transport goroutines.
func NewConnection(remoteAddr string, buffer int, cancel func(), logger *logrus.Logger) *Connection {
	if buffer <= 0 {
		buffer = DefaultOutBuffer
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Connection{
		ID:         uuid.New(),
		RemoteAddr: remoteAddr,
		OutChan:    make(chan Event, buffer),
		cancel:     cancel,
		logger:     logger,
	}
}

// Write queues ev without blocking. It reports false when the event was
// dropped because the queue is full or the connection is closed.
func (c *Connection) Write(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.OutChan <- ev:
		return true
	default:
		c.logger.WithFields(logrus.Fields{
			"conn": c.ID,
			"type": ev.Type,
		}).Warn("outbound queue full, dropped message")
		return false
	}
}

// WriteError sends an ERROR event.
func (c *Connection) WriteError(err *game.Error) {
	c.Write(errorEvent(err))
}

// Close stops further writes, closes OutChan and cancels the transport. It is safe to call more than once.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.OutChan)
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
}
