package speech

import (
	"sync"

	"github.com/ashureev/belai/internal/shared"
)

// StreamRecognizer is a Recognizer fed by a client that captures audio and
// performs recognition itself, such as a browser over a WebSocket.
type StreamRecognizer struct {
	mu        sync.Mutex
	supported bool
	listening bool
	handler   Handler
	// onStart and onStop notify the client; either may be nil.
	onStart func()
	onStop  func()
}

// NewStreamRecognizer creates a recognizer. onStart and onStop are invoked
// when listening begins and when it is stopped locally.
func NewStreamRecognizer(onStart, onStop func()) *StreamRecognizer {
	return &StreamRecognizer{onStart: onStart, onStop: onStop}
}

// SetSupported records whether a client can capture speech.
func (r *StreamRecognizer) SetSupported(supported bool) {
	r.mu.Lock()
	r.supported = supported
	r.mu.Unlock()
}

// Supported reports whether a client announced speech capture.
func (r *StreamRecognizer) Supported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supported
}

// Listening reports whether a capture is in progress.
func (r *StreamRecognizer) Listening() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listening
}

// Start begins a capture delivering events to h. Starting while already
// listening is a no-op.
func (r *StreamRecognizer) Start(h Handler) error {
	r.mu.Lock()
	if !r.supported {
		r.mu.Unlock()
		return &shared.CapabilityUnsupportedError{Capability: "speech recognition"}
	}
	if r.listening {
		r.mu.Unlock()
		return nil
	}
	r.listening = true
	r.handler = h
	onStart := r.onStart
	r.mu.Unlock()

	if onStart != nil {
		onStart()
	}
	return nil
}

// Stop ends the capture in progress.
func (r *StreamRecognizer) Stop() {
	h, ok := r.finish()
	if !ok {
		return
	}
	if r.onStop != nil {
		r.onStop()
	}
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

// Push delivers a fragment from the client. Fragments arriving while not
// listening are dropped.
func (r *StreamRecognizer) Push(t Transcript) {
	r.mu.Lock()
	h, listening := r.handler, r.listening
	r.mu.Unlock()
	if listening && h.OnResult != nil {
		h.OnResult(t)
	}
}

// Fail reports a client-side recognition error and ends the capture.
func (r *StreamRecognizer) Fail(code, message string) {
	h, ok := r.finish()
	if !ok {
		return
	}
	if h.OnError != nil {
		h.OnError(&RecognitionError{Code: code, Message: message})
	}
	if h.OnEnd != nil {
		h.OnEnd()
	}
}

// End reports that the client stopped capturing on its own.
func (r *StreamRecognizer) End() {
	h, ok := r.finish()
	if ok && h.OnEnd != nil {
		h.OnEnd()
	}
}

func (r *StreamRecognizer) finish() (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.listening {
		return Handler{}, false
	}
	h := r.handler
	r.listening = false
	r.handler = Handler{}
	return h, true
}
