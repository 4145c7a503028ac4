package server

import (
	"fmt"
	"sync"

	"github.com/chazu/angstrom/compiler"
)

// sessionRequest is a unit of work to be executed on the session goroutine.
type sessionRequest struct {
	fn   func(*compiler.Session) interface{}
	done chan sessionResult
}

// sessionResult holds the return value from a session operation.
type sessionResult struct {
	value interface{}
	err   error
}

// SessionWorker serializes all session access through a single goroutine.
// Compilation mutates the type registry and the VM heap, neither of which
// is safe for concurrent use.
type SessionWorker struct {
	session  *compiler.Session
	requests chan sessionRequest
	quit     chan struct{}
	stop     sync.Once
}

// NewSessionWorker creates a SessionWorker and starts the processing
// goroutine.
func NewSessionWorker(s *compiler.Session) *SessionWorker {
	w := &SessionWorker{
		session:  s,
		requests: make(chan sessionRequest),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *SessionWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn against the session, recovering from panics.
func (w *SessionWorker) execute(fn func(*compiler.Session) interface{}) sessionResult {
	var result sessionResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.session)
	}()
	return result
}

// Do submits fn for execution on the session goroutine and blocks until it
// completes. A panic in fn is returned as an error.
func (w *SessionWorker) Do(fn func(*compiler.Session) interface{}) (interface{}, error) {
	req := sessionRequest{
		fn:   fn,
		done: make(chan sessionResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, fmt.Errorf("session worker stopped")
	}
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *SessionWorker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
