package report

import (
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/pipebench/internal/pipeline"
)

// Stat summarises one measure across runs.
type Stat struct {
	Mean   float64 `json:"mean" yaml:"mean" toml:"mean"`
	StdDev float64 `json:"stddev" yaml:"stddev" toml:"stddev"`
	Min    float64 `json:"min" yaml:"min" toml:"min"`
	Max    float64 `json:"max" yaml:"max" toml:"max"`
	P50    float64 `json:"p50" yaml:"p50" toml:"p50"`
	P95    float64 `json:"p95" yaml:"p95" toml:"p95"`
}

// Summary aggregates completed runs. Aborted runs are counted but excluded
// from the statistics.
type Summary struct {
	Runs       int  `json:"runs" yaml:"runs" toml:"runs"`
	Completed  int  `json:"completed" yaml:"completed" toml:"completed"`
	Errors     int  `json:"errors" yaml:"errors" toml:"errors"`
	Throughput Stat `json:"throughput_mpps" yaml:"throughput_mpps" toml:"throughput_mpps"`
	Baseline   Stat `json:"baseline_mpps" yaml:"baseline_mpps" toml:"baseline_mpps"`
	Speedup    Stat `json:"speedup" yaml:"speedup" toml:"speedup"`
}

// Summarize computes the summary of runs.
func Summarize(runs []*pipeline.RunStats) Summary {
	s := Summary{Runs: len(runs)}
	var mp, sp, speedup []float64
	for _, r := range runs {
		s.Errors += r.Errors
		if r.Aborted {
			continue
		}
		s.Completed++
		mp = append(mp, r.Throughput()/1e6)
		sp = append(sp, r.BaselineThroughput()/1e6)
		speedup = append(speedup, r.Speedup())
	}
	s.Throughput = describe(mp)
	s.Baseline = describe(sp)
	s.Speedup = describe(speedup)
	return s
}

func describe(xs []float64) Stat {
	if len(xs) == 0 {
		return Stat{}
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	st := Stat{
		Mean: stat.Mean(sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		P50:  stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:  stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	// Sample deviation is undefined for one run.
	if len(sorted) > 1 {
		st.StdDev = stat.StdDev(sorted, nil)
	}
	return st
}
