// Package uuid provides identifier generation for jobs.
package uuid

import "github.com/google/uuid"

// Generator creates random identifier strings.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv4 string.
func (Generator) NewID() string {
	return uuid.NewString()
}
