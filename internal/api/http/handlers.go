package http

import (
	"bytes"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pipebench/internal/domain/bench"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pipebench/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pipebench/internal/pipeline"
	"github.com/GriffinCanCode/pipebench/internal/report"
	"github.com/GriffinCanCode/pipebench/internal/shared/utils"
)

const version = "0.3.0"

var contentTypes = map[report.Format]string{
	report.FormatJSON: "application/json",
	report.FormatYAML: "application/yaml",
	report.FormatTOML: "application/toml",
	report.FormatCSV:  "text/csv",
}

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *bench.Manager
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(manager *bench.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		manager: manager,
		metrics: metrics,
		logger:  logger,
	}
}

// Health handles the health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"service":     "pipebench",
		"version":     version,
		"running":     h.manager.Running(),
		"runs":        len(h.manager.List()),
		"subscribers": h.manager.Subscribers(),
		"guard":       guardState(h.manager.Guard()),
	})
}

// Stats returns the metrics snapshot
func (h *Handlers) Stats(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// ListRuns lists retained results
func (h *Handlers) ListRuns(c *gin.Context) {
	runs := h.manager.List()
	out := make([]report.Run, len(runs))
	for i, s := range runs {
		out[i] = report.NewRun(s)
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":    out,
		"summary": report.Summarize(runs),
	})
}

// GetRun returns one result
func (h *Handlers) GetRun(c *gin.Context) {
	runID := c.Param("id")
	stats, ok := h.manager.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "run_id": runID})
		return
	}
	c.JSON(http.StatusOK, report.NewRun(stats))
}

// Report encodes all retained results in the format given by ?format=
func (h *Handlers) Report(c *gin.Context) {
	format := report.Format(c.DefaultQuery("format", string(report.FormatJSON)))
	ct, ok := contentTypes[format]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format", "format": format})
		return
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, format, report.New(h.manager.List())); err != nil {
		h.logger.Error("Failed to encode report", zap.String("format", string(format)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, ct, buf.Bytes())
}

// StartRun executes a run synchronously and returns its result
func (h *Handlers) StartRun(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, utils.MaxRunRequestSize)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	params, err := parseRunRequest(body, h.manager.Defaults())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.manager.Execute(c.Request.Context(), params)
	switch {
	case errors.Is(err, bench.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, resilience.ErrGuardOpen):
		if until := h.manager.Guard().ReopenAt(); !until.IsZero() {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(time.Until(until).Seconds()))))
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrInvalidConfig):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil && stats != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"run":   report.NewRun(stats),
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, report.NewRun(stats))
	}
}

func guardState(g *resilience.Guard) string {
	if g == nil {
		return "disabled"
	}
	return g.State().String()
}
