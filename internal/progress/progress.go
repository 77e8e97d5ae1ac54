package progress

import "time"

// Stage identifies which part of a run is active.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageSynthesize Stage = "synthesize"
	StageComplete   Stage = "complete"
)

// Event carries progress information from the pipeline to the renderer.
type Event struct {
	Stage     Stage
	Message   string
	Percent   float64 // 0.0–1.0
	ItemNum   int
	ItemTotal int
	Elapsed   time.Duration
	Error     error
	// OutputDir, Success and Failed are set on StageComplete.
	OutputDir string
	Success   int
	Failed    int
}

// Callback is the function signature for progress event handlers.
type Callback func(Event)

// NopCallback is a no-op progress callback for tests and silent mode.
func NopCallback(Event) {}

// NewEvent creates an Event with common fields populated.
func NewEvent(stage Stage, msg string, pct float64, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Percent: pct,
		Elapsed: time.Since(start),
	}
}
