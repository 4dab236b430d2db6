package http

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pipebench/internal/pipeline"
)

func TestParseRunRequest(t *testing.T) {
	defaults := pipeline.DefaultParams()

	tests := []struct {
		name    string
		body    string
		want    func(p *pipeline.Params)
		wantErr bool
	}{
		{"empty body keeps defaults", "", func(*pipeline.Params) {}, false},
		{"empty object keeps defaults", "{}", func(*pipeline.Params) {}, false},
		{
			name: "overrides",
			body: `{"stages": 4, "items": 100, "batch_size": 16, "queue_capacity": 256, "backpressure": false, "bulk": true, "producer_rate": 1000, "pin_cpus": true, "timeout": "30s"}`,
			want: func(p *pipeline.Params) {
				p.Stages = 4
				p.Items = 100
				p.BatchSize = 16
				p.QueueCapacity = 256
				p.Backpressure = false
				p.Bulk = true
				p.ProducerRate = 1000
				p.PinCPUs = true
				p.Timeout = 30 * time.Second
			},
		},
		{"zero is an override", `{"spin_yield": 0}`, func(p *pipeline.Params) { p.SpinYield = 0 }, false},
		{"malformed", `{"stages":`, nil, true},
		{"bad timeout", `{"timeout": "later"}`, nil, true},
		{"oversized", `{"stages": 2, "pad": "` + strings.Repeat("x", 5000) + `"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRunRequest([]byte(tt.body), defaults)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := defaults
			tt.want(&want)
			assert.Equal(t, want, got)
		})
	}
}
