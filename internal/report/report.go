package report

import (
	"runtime"
	"time"

	"github.com/GriffinCanCode/pipebench/internal/pipeline"
)

// Environment describes the machine a report was produced on.
type Environment struct {
	GOOS       string `json:"goos" yaml:"goos" toml:"goos"`
	GOARCH     string `json:"goarch" yaml:"goarch" toml:"goarch"`
	NumCPU     int    `json:"num_cpu" yaml:"num_cpu" toml:"num_cpu"`
	GOMAXPROCS int    `json:"gomaxprocs" yaml:"gomaxprocs" toml:"gomaxprocs"`
	GoVersion  string `json:"go_version" yaml:"go_version" toml:"go_version"`
}

// CurrentEnvironment captures the running process environment.
func CurrentEnvironment() Environment {
	return Environment{
		GOOS:       runtime.GOOS,
		GOARCH:     runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		GoVersion:  runtime.Version(),
	}
}

// Run is the flattened record of one run as written to reports.
type Run struct {
	RunID             string                `json:"run_id" yaml:"run_id" toml:"run_id"`
	StartedAt         time.Time             `json:"started_at" yaml:"started_at" toml:"started_at"`
	Stages            int                   `json:"stages" yaml:"stages" toml:"stages"`
	Items             int                   `json:"items" yaml:"items" toml:"items"`
	BatchSize         int                   `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	QueueCapacity     int                   `json:"queue_capacity" yaml:"queue_capacity" toml:"queue_capacity"`
	Bulk              bool                  `json:"bulk" yaml:"bulk" toml:"bulk"`
	Received          int                   `json:"received" yaml:"received" toml:"received"`
	Errors            int                   `json:"errors" yaml:"errors" toml:"errors"`
	Aborted           bool                  `json:"aborted" yaml:"aborted" toml:"aborted"`
	ElapsedNS         int64                 `json:"elapsed_ns" yaml:"elapsed_ns" toml:"elapsed_ns"`
	Mpps              float64               `json:"mpps" yaml:"mpps" toml:"mpps"`
	BaselineElapsedNS int64                 `json:"baseline_elapsed_ns" yaml:"baseline_elapsed_ns" toml:"baseline_elapsed_ns"`
	BaselineMpps      float64               `json:"baseline_mpps" yaml:"baseline_mpps" toml:"baseline_mpps"`
	Speedup           float64               `json:"speedup" yaml:"speedup" toml:"speedup"`
	ProducerRetries   int64                 `json:"producer_retries" yaml:"producer_retries" toml:"producer_retries"`
	StageStats        []pipeline.StageStats `json:"stage_stats" yaml:"stage_stats" toml:"stage_stats"`
}

// NewRun flattens s.
func NewRun(s *pipeline.RunStats) Run {
	return Run{
		RunID:             s.RunID,
		StartedAt:         s.StartedAt,
		Stages:            s.Params.Stages,
		Items:             s.Params.Items,
		BatchSize:         s.Params.BatchSize,
		QueueCapacity:     s.Params.QueueCapacity,
		Bulk:              s.Params.Bulk,
		Received:          s.Received,
		Errors:            s.Errors,
		Aborted:           s.Aborted,
		ElapsedNS:         s.Elapsed.Nanoseconds(),
		Mpps:              s.Throughput() / 1e6,
		BaselineElapsedNS: s.BaselineElapsed.Nanoseconds(),
		BaselineMpps:      s.BaselineThroughput() / 1e6,
		Speedup:           s.Speedup(),
		ProducerRetries:   s.ProducerRetries,
		StageStats:        s.Stages,
	}
}

// Report is the document written to report files and served by the API.
type Report struct {
	GeneratedAt time.Time   `json:"generated_at" yaml:"generated_at" toml:"generated_at"`
	Environment Environment `json:"environment" yaml:"environment" toml:"environment"`
	Runs        []Run       `json:"runs" yaml:"runs" toml:"runs"`
	Summary     Summary     `json:"summary" yaml:"summary" toml:"summary"`
}

// New builds a report over runs.
func New(runs []*pipeline.RunStats) *Report {
	r := &Report{
		GeneratedAt: time.Now().UTC(),
		Environment: CurrentEnvironment(),
		Runs:        make([]Run, len(runs)),
		Summary:     Summarize(runs),
	}
	for i, s := range runs {
		r.Runs[i] = NewRun(s)
	}
	return r
}
