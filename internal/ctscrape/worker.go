package ctscrape

// Worker is the minimal lifecycle a background goroutine driven by Start
// implements: HandleCast is invoked for every message sent with Cast, in
// order, on a single goroutine, until Stop is called or HandleCast itself
// returns an error. Terminate always runs exactly once before the
// goroutine exits, receiving whatever error caused the stop (nil for a
// clean Stop).
type Worker interface {
	HandleCast(msg any) error
	Terminate(cause error) error
}

// Handle is the caller-side handle to a running Worker goroutine, the Go
// analogue of the original's Mic type: a reference used to cast messages
// in and, once, to stop the worker and collect its final error.
type Handle struct {
	casts  chan any
	stop   chan struct{}
	closed chan struct{} // closed exactly once, right after err is set
	err    error
}

// Start launches w on its own goroutine and returns a Handle for sending
// it messages. The goroutine runs until Stop is called or HandleCast
// returns a non-nil error, at which point Terminate is called with that
// error (nil on a clean Stop) and the goroutine exits.
func Start(w Worker) *Handle {
	h := &Handle{
		casts:  make(chan any),
		stop:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go h.run(w)
	return h
}

func (h *Handle) run(w Worker) {
	var err error
	defer func() {
		h.err = err
		close(h.closed)
	}()
	for {
		select {
		case msg := <-h.casts:
			if cerr := w.HandleCast(msg); cerr != nil {
				err = w.Terminate(cerr)
				return
			}
		case <-h.stop:
			err = w.Terminate(nil)
			return
		}
	}
}

// Cast sends msg to the worker without waiting for it to be handled. If
// the worker has already terminated (its own HandleCast returned an
// error, or Stop already ran), Cast reports that instead of blocking
// forever on a send nobody will ever receive.
func (h *Handle) Cast(msg any) bool {
	select {
	case h.casts <- msg:
		return true
	case <-h.closed:
		return false
	}
}

// Err blocks until the worker has terminated and returns the error its
// Terminate call produced (nil for a clean stop). Safe to call after
// Cast reports the worker dead, and safe to call concurrently with Stop.
func (h *Handle) Err() error {
	<-h.closed
	return h.err
}

// Stop requests the worker terminate and blocks until Terminate has run,
// returning whatever error it produced. Safe to call exactly once; safe
// to call even if the worker already stopped itself on a HandleCast
// error. Unlike a non-blocking send, this always waits for the worker to
// leave whatever it's doing (including a HandleCast in flight) before
// giving up the stop request, so the signal is never silently dropped.
func (h *Handle) Stop() error {
	select {
	case h.stop <- struct{}{}:
	case <-h.closed:
	}
	return h.Err()
}
