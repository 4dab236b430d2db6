package bench

import (
	"time"

	"github.com/GriffinCanCode/pipebench/internal/pipeline"
	"github.com/GriffinCanCode/pipebench/internal/report"
)

// Event types published to subscribers.
const (
	EventStarted = "started"
	EventSample  = "sample"
	EventDone    = "done"
)

// Event is one message of the live feed.
type Event struct {
	Type      string           `json:"type"`
	RunID     string           `json:"run_id"`
	Params    *pipeline.Params `json:"params,omitempty"`
	Depths    []int            `json:"depth,omitempty"`
	Processed []int64          `json:"processed,omitempty"`
	Received  int64            `json:"received"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Result    *report.Run      `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func sampleEvent(live *pipeline.Live, since time.Time) Event {
	return Event{
		Type:      EventSample,
		RunID:     live.RunID,
		Depths:    live.Depths(),
		Processed: live.Processed(),
		Received:  live.Received(),
		ElapsedMS: time.Since(since).Milliseconds(),
	}
}
