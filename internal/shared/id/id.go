// Package id generates sortable identifiers for benchmark runs.
//
// Run ids are ULIDs with a "run_" prefix. ULIDs sort by creation time, so the
// run history can be listed in order without keeping a separate timestamp
// index, and the start time of a run can be recovered from its id.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunID identifies one benchmark run
type RunID string

// RunPrefix is prepended to every run id.
const RunPrefix = "run"

func (id RunID) String() string { return string(id) }

// Generator generates ULIDs. Ids created within the same millisecond are
// strictly increasing.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// for deterministic ids in tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// NewRunID creates a prefixed run id.
func (g *Generator) NewRunID() RunID {
	return RunID(fmt.Sprintf("%s_%s", RunPrefix, g.Generate()))
}

// NewRunID creates a run id with the default generator.
func NewRunID() RunID {
	return Default().NewRunID()
}

// ParseRunID validates a run id and returns its ULID part.
func ParseRunID(s string) (ulid.ULID, error) {
	raw, ok := strings.CutPrefix(s, RunPrefix+"_")
	if !ok {
		return ulid.ULID{}, fmt.Errorf("run id %q: missing %q prefix", s, RunPrefix)
	}
	return ulid.ParseStrict(raw)
}

// IsValidRunID reports whether s is a well-formed run id.
func IsValidRunID(s string) bool {
	_, err := ParseRunID(s)
	return err == nil
}

// Timestamp extracts the creation time of a run id
func Timestamp(s string) (time.Time, error) {
	u, err := ParseRunID(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
