// internal/core/ports/notifier.go
package ports

import (
	"time"
)

// Notifier receives progress events from the runner. Notify is called from the
// worker goroutines, so implementations must be safe for concurrent use and
// must not block.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// EventType enumerates runner events.
type EventType string

const (
	EventRunStarted     EventType = "run.started"
	EventRunCompleted   EventType = "run.completed"
	EventModuleStarted  EventType = "module.started"
	EventModuleFinished EventType = "module.finished"
	EventModuleFailed   EventType = "module.failed"
)

// Event describes one step of a run. Module fields are empty for run events;
// Modules is only set on EventRunStarted.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Source    string

	Module     string
	Input      string
	Records    int
	Detections int
	Err        error
	Duration   time.Duration

	Modules []string
}
