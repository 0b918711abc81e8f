package datasource

import (
	"bytes"
	"crypto/md5"
	"sync"
)

// PropertyHandler consumes one raw rule document whenever the backing
// source changes.
type PropertyHandler interface {
	// Handle parses and applies the document, all-or-nothing
	Handle(src []byte) error
}

// PropertyHandlerFunc adapts a function to the PropertyHandler interface
type PropertyHandlerFunc func(src []byte) error

func (f PropertyHandlerFunc) Handle(src []byte) error {
	return f(src)
}

// DataSource feeds rule documents from an external system into handlers
type DataSource interface {
	// AddPropertyHandler registers a handler for future updates
	AddPropertyHandler(h PropertyHandler)

	// Initialize reads the current document and starts watching
	Initialize() error

	// Close stops watching
	Close() error
}

// dedupHandler drops updates whose content hash matches the previous one,
// so a noisy source does not thrash the rule managers.
type dedupHandler struct {
	mu       sync.Mutex
	lastHash [16]byte
	seen     bool
	inner    PropertyHandler
}

// Dedup wraps a handler to ignore byte-identical consecutive updates
func Dedup(inner PropertyHandler) PropertyHandler {
	return &dedupHandler{inner: inner}
}

func (d *dedupHandler) Handle(src []byte) error {
	hash := md5.Sum(bytes.TrimSpace(src))
	d.mu.Lock()
	if d.seen && hash == d.lastHash {
		d.mu.Unlock()
		return nil
	}
	d.lastHash = hash
	d.seen = true
	d.mu.Unlock()
	return d.inner.Handle(src)
}
