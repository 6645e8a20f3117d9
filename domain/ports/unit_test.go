package ports

import (
	"context"
	"errors"
	"testing"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockUnitHandle is a mock implementation of UnitHandle with lifecycle hooks.
type MockUnitHandle struct {
	Calls []string
	Ports map[uint32]unsafe.Pointer
}

func (m *MockUnitHandle) ConnectPort(port uint32, data unsafe.Pointer) {
	if m.Ports == nil {
		m.Ports = make(map[uint32]unsafe.Pointer)
	}
	m.Ports[port] = data
	m.Calls = append(m.Calls, "connect")
}

func (m *MockUnitHandle) Run(uint32)  { m.Calls = append(m.Calls, "run") }
func (m *MockUnitHandle) Cleanup()    { m.Calls = append(m.Calls, "cleanup") }
func (m *MockUnitHandle) Activate()   { m.Calls = append(m.Calls, "activate") }
func (m *MockUnitHandle) Deactivate() { m.Calls = append(m.Calls, "deactivate") }

// MockUnitDescriptor is a mock implementation of UnitDescriptor.
type MockUnitDescriptor struct {
	URIValue        string
	InstantiateFunc func(float64, string, []entities.Feature) (UnitHandle, error)
}

func (m *MockUnitDescriptor) URI() string { return m.URIValue }

func (m *MockUnitDescriptor) Instantiate(rate float64, bundle string, features []entities.Feature) (UnitHandle, error) {
	if m.InstantiateFunc != nil {
		return m.InstantiateFunc(rate, bundle, features)
	}
	return &MockUnitHandle{}, nil
}

// MockUnitLibrary is a mock implementation of UnitLibrary and LibraryLoader.
type MockUnitLibrary struct {
	Descriptors []UnitDescriptor
	Closed      bool
}

func (m *MockUnitLibrary) Descriptor(index uint32) (UnitDescriptor, bool) {
	if int(index) >= len(m.Descriptors) {
		return nil, false
	}
	return m.Descriptors[index], true
}

func (m *MockUnitLibrary) Close() error {
	m.Closed = true
	return nil
}

func (m *MockUnitLibrary) Load(context.Context, string) (UnitLibrary, error) {
	return m, nil
}

// Compile-time interface checks
var (
	_ UnitHandle     = (*MockUnitHandle)(nil)
	_ Activator      = (*MockUnitHandle)(nil)
	_ Deactivator    = (*MockUnitHandle)(nil)
	_ UnitDescriptor = (*MockUnitDescriptor)(nil)
	_ UnitLibrary    = (*MockUnitLibrary)(nil)
	_ LibraryLoader  = (*MockUnitLibrary)(nil)
)

func TestMockUnitLibrary_DescriptorTable(t *testing.T) {
	lib := &MockUnitLibrary{Descriptors: []UnitDescriptor{
		&MockUnitDescriptor{URIValue: "urn:a"},
		&MockUnitDescriptor{URIValue: "urn:b"},
	}}

	var uris []string
	for i := uint32(0); ; i++ {
		d, ok := lib.Descriptor(i)
		if !ok {
			break
		}
		uris = append(uris, d.URI())
	}
	assert.Equal(t, []string{"urn:a", "urn:b"}, uris)

	require.NoError(t, lib.Close())
	assert.True(t, lib.Closed)
}

func TestMockUnitDescriptor_Instantiate(t *testing.T) {
	t.Run("default behavior", func(t *testing.T) {
		d := &MockUnitDescriptor{URIValue: "urn:a"}
		h, err := d.Instantiate(48000, "/b/", nil)
		require.NoError(t, err)

		var buf float32
		h.ConnectPort(0, unsafe.Pointer(&buf))
		h.Run(1)
		if a, ok := h.(Activator); ok {
			a.Activate()
		}
		if d, ok := h.(Deactivator); ok {
			d.Deactivate()
		}
		h.Cleanup()
		assert.Equal(t, []string{"connect", "run", "activate", "deactivate", "cleanup"}, h.(*MockUnitHandle).Calls)
	})

	t.Run("refusal", func(t *testing.T) {
		expected := errors.New("unsupported rate")
		d := &MockUnitDescriptor{
			InstantiateFunc: func(rate float64, _ string, _ []entities.Feature) (UnitHandle, error) {
				if rate > 96000 {
					return nil, expected
				}
				return &MockUnitHandle{}, nil
			},
		}
		h, err := d.Instantiate(192000, "/b/", nil)
		assert.ErrorIs(t, err, expected)
		assert.Nil(t, h)
	})
}
