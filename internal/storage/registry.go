package storage

import (
	"log/slog"
	"sync"
)

// WriterRegistry hands out one JSONLWriter per host segment so each API host's
// traffic lands in its own directory.
type WriterRegistry struct {
	baseDir    string
	name       string
	maxSizeMB  int
	bufferSize int

	writers map[string]*JSONLWriter
	mu      sync.RWMutex
}

// NewWriterRegistry creates a registry whose writers all use name as the file
// base name.
func NewWriterRegistry(baseDir, name string, bufferSize, maxSizeMB int) *WriterRegistry {
	return &WriterRegistry{
		baseDir:    baseDir,
		name:       name,
		maxSizeMB:  maxSizeMB,
		bufferSize: bufferSize,
		writers:    make(map[string]*JSONLWriter),
	}
}

// GetWriter returns (or creates) the writer for segment.
func (r *WriterRegistry) GetWriter(segment string) *JSONLWriter {
	r.mu.RLock()
	writer, ok := r.writers[segment]
	r.mu.RUnlock()
	if ok {
		return writer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if writer, ok := r.writers[segment]; ok {
		return writer
	}

	writer = NewJSONLWriter(r.baseDir, segment, r.name, r.bufferSize, r.maxSizeMB)
	r.writers[segment] = writer
	slog.Info("Created new JSONL writer", "segment", segment, "name", r.name)
	return writer
}

// Len returns the number of open writers.
func (r *WriterRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.writers)
}

// Close closes all managed writers.
func (r *WriterRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for segment, writer := range r.writers {
		if err := writer.Close(); err != nil {
			slog.Error("Failed to close writer", "segment", segment, "error", err)
			lastErr = err
		}
	}
	r.writers = make(map[string]*JSONLWriter)

	return lastErr
}
