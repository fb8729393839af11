package veil

import "strings"

// Operation is the class of a data-access call.
type Operation int

// Operation classes.
const (
	OpUnknown Operation = iota
	OpWrite
	OpRead
)

func (o Operation) String() string {
	switch o {
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	default:
		return "unknown"
	}
}

// Default operation name prefixes.
var (
	DefaultWritePrefixes = []string{"insert", "update", "save", "delete"}
	DefaultReadPrefixes  = []string{"select", "get", "list", "find", "query", "count", "page"}
)

// Classifier maps operation names to write or read by case-insensitive
// prefix. Write prefixes are checked first.
type Classifier struct {
	write []string
	read  []string
}

// NewClassifier returns a Classifier using the given prefix tables.
func NewClassifier(write, read []string) *Classifier {
	return &Classifier{write: lower(write), read: lower(read)}
}

// DefaultClassifier returns a Classifier using the default prefixes.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultWritePrefixes, DefaultReadPrefixes)
}

// Classify returns the class of the named operation.
func (c *Classifier) Classify(name string) Operation {
	n := strings.ToLower(name)
	for _, p := range c.write {
		if strings.HasPrefix(n, p) {
			return OpWrite
		}
	}
	for _, p := range c.read {
		if strings.HasPrefix(n, p) {
			return OpRead
		}
	}
	return OpUnknown
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
