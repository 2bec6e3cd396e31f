// Package id provides centralized ID generation for the bridge.
//
// All IDs are ULIDs: lexicographically sortable, collision-free across
// goroutines, and readable in logs thanks to type-specific prefixes
// (req_* for correlation IDs, conn_* for bridge connections).
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

// CorrelationID matches a request to its eventual response.
type CorrelationID string

// ConnID identifies a single bridge connection.
type ConnID string

const (
	CorrelationPrefix = "req"
	ConnPrefix        = "conn"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// Correlation generates a new correlation ID.
func (g *Generator) Correlation() CorrelationID {
	return CorrelationID(g.GenerateWithPrefix(CorrelationPrefix))
}

// NewCorrelationID generates a correlation ID from the default generator.
func NewCorrelationID() CorrelationID {
	return Default().Correlation()
}

// NewConnID generates a connection ID from the default generator.
func NewConnID() ConnID {
	return ConnID(Default().GenerateWithPrefix(ConnPrefix))
}

func (id CorrelationID) String() string { return string(id) }
func (id ConnID) String() string        { return string(id) }

// parse accepts both bare ULIDs and the prefixed form this package emits.
func parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// IsValid checks if an ID string is a valid ULID, with or without a prefix.
func IsValid(id string) bool {
	_, err := parse(id)
	return err == nil
}

// Timestamp extracts the embedded timestamp from an ID string.
func Timestamp(id string) (time.Time, error) {
	parsed, err := parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
