// Package feature provides host features offered to units at instantiation.
package feature

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/vocabulary"
)

// URID is an integer standing for a URI. Zero is never a valid URID.
type URID uint32

// Mapper maps URIs to URIDs.
type Mapper interface {
	Map(uri string) URID
}

// Unmapper maps URIDs back to URIs.
type Unmapper interface {
	Unmap(id URID) (string, bool)
}

// URIDMap is the URI mapping service. Mapping a new URI takes a write lock,
// so hosts should map every URI a unit needs before it starts running.
type URIDMap struct {
	mu     sync.RWMutex
	ids    map[string]URID
	uris   []string // uris[id-1]
	logger *slog.Logger
}

// NewURIDMap creates an empty map. A nil logger selects slog.Default.
func NewURIDMap(logger *slog.Logger) *URIDMap {
	if logger == nil {
		logger = slog.Default()
	}
	return &URIDMap{
		ids:    make(map[string]URID),
		logger: logger,
	}
}

// Map returns the URID of uri, assigning the next free one on first use.
// The empty string maps to zero.
func (m *URIDMap) Map(uri string) URID {
	if uri == "" {
		return 0
	}
	m.mu.RLock()
	id, ok := m.ids[uri]
	m.mu.RUnlock()
	if ok {
		return id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[uri]; ok {
		return id
	}
	m.uris = append(m.uris, uri)
	id = URID(len(m.uris))
	m.ids[uri] = id
	m.logger.Debug("mapped uri", "uri", uri, "urid", id)
	return id
}

// Unmap returns the URI of id.
func (m *URIDMap) Unmap(id URID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id == 0 || int(id) > len(m.uris) {
		return "", false
	}
	return m.uris[id-1], true
}

// Len returns the number of mapped URIs.
func (m *URIDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uris)
}

// Feature returns the urid:map feature carrying m.
func (m *URIDMap) Feature() entities.Feature {
	return entities.Feature{URI: vocabulary.URIDMap, Data: Mapper(m)}
}

// UnmapFeature returns the urid:unmap feature carrying m.
func (m *URIDMap) UnmapFeature() entities.Feature {
	return entities.Feature{URI: vocabulary.URIDUnmap, Data: Unmapper(m)}
}

var (
	// ErrWrongFeature is returned when a feature is not the one requested.
	ErrWrongFeature = errors.New("wrong feature")
	// ErrNoData is returned when a feature carries no data.
	ErrNoData = errors.New("feature carries no data")
)

// FromFeature extracts the mapper from a urid:map feature.
func FromFeature(f entities.Feature) (Mapper, error) {
	if f.URI != vocabulary.URIDMap {
		return nil, fmt.Errorf("%w: %s", ErrWrongFeature, f.URI)
	}
	if f.Data == nil {
		return nil, ErrNoData
	}
	m, ok := f.Data.(Mapper)
	if !ok {
		return nil, fmt.Errorf("%w: %s carries %T", ErrWrongFeature, f.URI, f.Data)
	}
	return m, nil
}

// Find returns the first feature with uri.
func Find(features []entities.Feature, uri string) (entities.Feature, bool) {
	for _, f := range features {
		if f.URI == uri {
			return f, true
		}
	}
	return entities.Feature{}, false
}
