package http

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/pipebench/internal/pipeline"
	"github.com/GriffinCanCode/pipebench/internal/shared/utils"
)

var bodyValidator = utils.RunRequestValidator()

// RunRequest holds optional overrides of the manager defaults.
type RunRequest struct {
	Stages        *int     `json:"stages"`
	Items         *int     `json:"items"`
	BatchSize     *int     `json:"batch_size"`
	QueueCapacity *int     `json:"queue_capacity"`
	Backpressure  *bool    `json:"backpressure"`
	Bulk          *bool    `json:"bulk"`
	SpinYield     *int     `json:"spin_yield"`
	ProducerRate  *float64 `json:"producer_rate"`
	PinCPUs       *bool    `json:"pin_cpus"`
	Timeout       string   `json:"timeout"` // Go duration, e.g. "30s"
}

// parseRunRequest decodes body onto defaults. An empty body keeps the
// defaults.
func parseRunRequest(body []byte, defaults pipeline.Params) (pipeline.Params, error) {
	p := defaults
	if len(body) == 0 {
		return p, nil
	}

	if err := bodyValidator.ValidateJSON(body); err != nil {
		return p, fmt.Errorf("invalid request body: %w", err)
	}

	var req RunRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		return p, fmt.Errorf("invalid request body: %w", err)
	}

	setInt(&p.Stages, req.Stages)
	setInt(&p.Items, req.Items)
	setInt(&p.BatchSize, req.BatchSize)
	setInt(&p.QueueCapacity, req.QueueCapacity)
	setInt(&p.SpinYield, req.SpinYield)
	if req.Backpressure != nil {
		p.Backpressure = *req.Backpressure
	}
	if req.Bulk != nil {
		p.Bulk = *req.Bulk
	}
	if req.ProducerRate != nil {
		p.ProducerRate = *req.ProducerRate
	}
	if req.PinCPUs != nil {
		p.PinCPUs = *req.PinCPUs
	}
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return p, fmt.Errorf("invalid timeout: %w", err)
		}
		p.Timeout = d
	}
	return p, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
