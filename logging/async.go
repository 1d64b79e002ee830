package logging

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// fullQueueWait is how long Log waits for room in a full queue before it
// delivers the message itself.
const fullQueueWait = 50 * time.Millisecond

// Async hands messages to a background goroutine so that slow log output
// does not hold up the caller. When the queue stays full for longer than
// fullQueueWait the message is delivered directly instead of being
// dropped; such a message may then appear ahead of messages still queued.
type Async struct {
	next  Sink
	queue chan Entry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the consumer goroutine. Close must be called to flush
// pending messages.
func NewAsync(next Sink, buffer int) *Async {
	if buffer < 1 {
		buffer = 1
	}

	a := &Async{
		next:  next,
		queue: make(chan Entry, buffer),
		done:  make(chan struct{}),
	}

	go a.consume()

	return a
}

func (a *Async) consume() {
	defer close(a.done)

	for e := range a.queue {
		a.next.Log(e.Level, e.Message)
	}
}

func (a *Async) Log(level logrus.Level, msg string) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.next.Log(level, msg)
		return
	}

	e := Entry{Level: level, Message: msg}

	select {
	case a.queue <- e:
		return
	default:
	}

	timer := time.NewTimer(fullQueueWait)
	defer timer.Stop()

	select {
	case a.queue <- e:
	case <-timer.C:
		a.next.Log(level, msg)
	}
}

// Close waits until every queued message has been delivered. It is safe to
// call more than once; later messages go straight to the wrapped sink.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
}
