package pipeline

import "time"

// StageStats are the counters one stage collected during a run.
type StageStats struct {
	ID             int    `json:"id"`
	State          string `json:"state"`
	Batches        int64  `json:"batches"`
	Items          int64  `json:"items"`
	EmptyPolls     int64  `json:"empty_polls"`
	EnqueueRetries int64  `json:"enqueue_retries"`
	MaxBacklog     int    `json:"max_backlog"`
	Stranded       int    `json:"stranded"`
}

// RunStats is the result record of one run. It is read-only once returned.
type RunStats struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Params    Params    `json:"params"`

	Produced        int           `json:"produced"`
	Received        int           `json:"received"`
	ProducerRetries int64         `json:"producer_retries"`
	Elapsed         time.Duration `json:"elapsed_ns"`
	Errors          int           `json:"errors"`
	Aborted         bool          `json:"aborted"`

	BaselineElapsed time.Duration `json:"baseline_elapsed_ns"`
	BaselineWork    int64         `json:"baseline_work"`
	BaselineErrors  int           `json:"baseline_errors"`

	Stages []StageStats `json:"stages"`
}

// Total is the corpus size of the run.
func (s *RunStats) Total() int {
	return s.Params.Items
}

// Work is the number of increments the concurrent run performed.
func (s *RunStats) Work() int64 {
	var w int64
	for _, st := range s.Stages {
		w += st.Items
	}
	return w
}

// Throughput is received items per second over the timed region.
func (s *RunStats) Throughput() float64 {
	return perSecond(float64(s.Received), s.Elapsed)
}

// BaselineThroughput is corpus items per second of the single-threaded pass.
func (s *RunStats) BaselineThroughput() float64 {
	return perSecond(float64(s.Total()), s.BaselineElapsed)
}

// Speedup is Throughput over BaselineThroughput, 0 when either is unknown.
func (s *RunStats) Speedup() float64 {
	base := s.BaselineThroughput()
	if base == 0 {
		return 0
	}
	return s.Throughput() / base
}

// ErrorRatio is mismatched items over the corpus size.
func (s *RunStats) ErrorRatio() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Total())
}

func perSecond(n float64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return n / d.Seconds()
}
