package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownFormat is returned for report paths with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown report format")

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatCSV  Format = "csv"
)

// Compression is a report file compression.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// DetectFormat derives encoding and compression from a file name such as
// "runs.csv.zst".
func DetectFormat(path string) (Format, Compression, error) {
	name := strings.ToLower(filepath.Base(path))
	comp := CompressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		comp = CompressionGzip
		name = strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		comp = CompressionZstd
		name = strings.TrimSuffix(name, ".zst")
	}

	switch ext := filepath.Ext(name); ext {
	case ".json":
		return FormatJSON, comp, nil
	case ".yaml", ".yml":
		return FormatYAML, comp, nil
	case ".toml":
		return FormatTOML, comp, nil
	case ".csv":
		return FormatCSV, comp, nil
	default:
		return "", comp, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Encode writes r to w in format f.
func Encode(w io.Writer, f Format, r *Report) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatJSON:
		data, err = sonic.MarshalIndent(r, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(r)
	case FormatTOML:
		data, err = toml.Marshal(r)
	case FormatCSV:
		return encodeCSV(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return fmt.Errorf("encode %s report: %w", f, err)
	}
	_, err = w.Write(data)
	return err
}

var csvHeader = []string{
	"run_id", "started_at", "stages", "items", "batch_size", "queue_capacity",
	"received", "errors", "aborted", "elapsed_ns", "mpps",
	"baseline_elapsed_ns", "baseline_mpps", "speedup", "producer_retries",
}

// encodeCSV writes one row per run. Per-stage counters are not included.
func encodeCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, run := range r.Runs {
		row := []string{
			run.RunID,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			strconv.Itoa(run.Stages),
			strconv.Itoa(run.Items),
			strconv.Itoa(run.BatchSize),
			strconv.Itoa(run.QueueCapacity),
			strconv.Itoa(run.Received),
			strconv.Itoa(run.Errors),
			strconv.FormatBool(run.Aborted),
			strconv.FormatInt(run.ElapsedNS, 10),
			strconv.FormatFloat(run.Mpps, 'f', 3, 64),
			strconv.FormatInt(run.BaselineElapsedNS, 10),
			strconv.FormatFloat(run.BaselineMpps, 'f', 3, 64),
			strconv.FormatFloat(run.Speedup, 'f', 3, 64),
			strconv.FormatInt(run.ProducerRetries, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile encodes r into path, choosing format and compression from the
// file name.
func WriteFile(path string, r *Report) (err error) {
	format, comp, err := DetectFormat(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	var closer io.Closer
	switch comp {
	case CompressionGzip:
		gz := gzip.NewWriter(f)
		w, closer = gz, gz
	case CompressionZstd:
		zw, zerr := zstd.NewWriter(f)
		if zerr != nil {
			return fmt.Errorf("zstd writer: %w", zerr)
		}
		w, closer = zw, zw
	}

	if err := Encode(w, format, r); err != nil {
		return err
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("finish %s stream: %w", comp, err)
		}
	}
	return nil
}
