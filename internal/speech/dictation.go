package speech

import (
	"strings"
	"sync"
)

// Dictation accumulates final transcript fragments from a Recognizer into one
// editable transcript, the way a microphone button fills a text box.
type Dictation struct {
	rec Recognizer

	mu         sync.Mutex
	transcript string
	interim    string
	listening  bool
	lastErr    *RecognitionError
}

// NewDictation wraps rec.
func NewDictation(rec Recognizer) *Dictation {
	return &Dictation{rec: rec}
}

// Supported reports whether the underlying recognizer can capture speech.
func (d *Dictation) Supported() bool {
	return d.rec.Supported()
}

// Start clears the transcript and begins listening.
func (d *Dictation) Start() error {
	d.mu.Lock()
	if d.listening {
		d.mu.Unlock()
		return nil
	}
	d.transcript = ""
	d.interim = ""
	d.lastErr = nil
	d.listening = true
	d.mu.Unlock()

	err := d.rec.Start(Handler{
		OnResult: d.onResult,
		OnError:  d.onError,
		OnEnd:    d.onEnd,
	})
	if err != nil {
		d.mu.Lock()
		d.listening = false
		d.mu.Unlock()
	}
	return err
}

// Stop ends listening.
func (d *Dictation) Stop() {
	d.rec.Stop()
	d.onEnd()
}

// Reset clears the transcript and the last error.
func (d *Dictation) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transcript = ""
	d.interim = ""
	d.lastErr = nil
}

// Transcript returns the accumulated final text.
func (d *Dictation) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transcript
}

// Interim returns the latest non-final fragment.
func (d *Dictation) Interim() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.interim
}

// Listening reports whether a capture is active.
func (d *Dictation) Listening() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.listening
}

// Err returns the last recognition error, or nil.
func (d *Dictation) Err() *RecognitionError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Dictation) onResult(t Transcript) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !t.Final {
		d.interim = t.Text
		return
	}
	d.interim = ""
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return
	}
	if d.transcript == "" {
		d.transcript = text
	} else {
		d.transcript = d.transcript + " " + text
	}
}

func (d *Dictation) onError(err *RecognitionError) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastErr = err
	d.listening = false
}

func (d *Dictation) onEnd() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listening = false
	d.interim = ""
}
