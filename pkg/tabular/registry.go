package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Registry maps a declared format (file extension without the dot) to the
// parser able to read it. Selection happens once at the boundary; anything
// unregistered fails fast with ErrUnsupportedFormat.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// DefaultRegistry returns a registry with the formats the bot accepts.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("csv", NewCSVParser())
	return r
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Lookup resolves a declared format to its parser.
func (r *Registry) Lookup(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(strings.TrimPrefix(format, "."))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// ParseFile opens path and parses it using the parser registered for the
// declared name's extension.
func (r *Registry) ParseFile(path, declaredName string) (*Table, error) {
	ext := filepath.Ext(declaredName)
	if ext == "" {
		ext = filepath.Ext(path)
	}
	p, err := r.Lookup(ext)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: declaredName, Reason: err.Error()}
	}
	defer f.Close()

	table, err := p.Parse(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.File == "" {
			pe.File = declaredName
		}
		return nil, err
	}
	return table, nil
}
