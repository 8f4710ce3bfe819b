package logger

import (
	"errors"
	"io"
	"sync"
)

// asyncWriter moves log output off the caller's goroutine. A single loop
// owns the sinks; Flush round-trips through the loop so everything queued
// before it has been written when it returns.
type asyncWriter struct {
	queue chan []byte
	flush chan chan error
	done  chan struct{}
	once  sync.Once
	sinks []io.Writer

	mu  sync.Mutex
	err error
}

func newAsyncWriter(writers []io.Writer, queueSize int) *asyncWriter {
	if queueSize <= 0 {
		queueSize = 1024
	}
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		queue: make(chan []byte, queueSize),
		flush: make(chan chan error),
		done:  make(chan struct{}),
		sinks: sinks,
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				return
			}
			w.write(line)
		case ack := <-w.flush:
			// Drain what was queued before the flush request.
			for n := len(w.queue); n > 0; n-- {
				w.write(<-w.queue)
			}
			ack <- w.firstErr()
		}
	}
}

func (w *asyncWriter) write(line []byte) {
	var errs []error
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		w.mu.Lock()
		if w.err == nil {
			w.err = err
		}
		w.mu.Unlock()
	}
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Write queues a copy of p. It blocks when the queue is full rather than
// dropping lines.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.queue <- append([]byte(nil), p...)
	return nil
}

// Flush returns once every line queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	select {
	case <-w.done:
		return w.firstErr()
	default:
	}
	ack := make(chan error, 1)
	select {
	case w.flush <- ack:
		return <-ack
	case <-w.done:
		return w.firstErr()
	}
}

// Close drains the queue and stops the loop.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.firstErr()
}
