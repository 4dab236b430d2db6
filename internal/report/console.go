package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/GriffinCanCode/pipebench/internal/pipeline"
)

// PrintRun writes the result lines for one run. An aborted run prints its
// partial counts instead of speeds.
func PrintRun(w io.Writer, s *pipeline.RunStats) error {
	if s.Aborted {
		_, err := fmt.Fprintf(w, "Run aborted: received %d/%d\nError ratio = %d/%d\n",
			s.Received, s.Total(), s.Errors, s.Total())
		return err
	}
	_, err := fmt.Fprintf(w,
		"Time elapsed %d ns\nMP : Speed = %.3f Mpps\nError ratio = %d/%d\nTime elapsed %d ns\nSP : Speed = %.3f Mpps\n",
		s.Elapsed.Nanoseconds(),
		s.Throughput()/1e6,
		s.Errors, s.Total(),
		s.BaselineElapsed.Nanoseconds(),
		s.BaselineThroughput()/1e6,
	)
	return err
}

// PrintSummary writes the multi-run summary as a table.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n%d runs, %d completed, %d errors\n", s.Runs, s.Completed, s.Errors)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Measure", "Mean", "StdDev", "Min", "P50", "P95", "Max"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, row := range []struct {
		name string
		st   Stat
	}{
		{"MP Mpps", s.Throughput},
		{"SP Mpps", s.Baseline},
		{"Speedup", s.Speedup},
	} {
		table.Append([]string{
			row.name,
			ff(row.st.Mean), ff(row.st.StdDev), ff(row.st.Min),
			ff(row.st.P50), ff(row.st.P95), ff(row.st.Max),
		})
	}
	table.Render()
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
