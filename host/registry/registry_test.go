package registry

import (
	"testing"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandle struct{}

func (nopHandle) ConnectPort(uint32, unsafe.Pointer) {}
func (nopHandle) Run(uint32)                         {}
func (nopHandle) Cleanup()                           {}

type nopDescriptor string

func (d nopDescriptor) URI() string { return string(d) }

func (nopDescriptor) Instantiate(float64, string, []entities.Feature) (ports.UnitHandle, error) {
	return nopHandle{}, nil
}

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	lib := Descriptors(nopDescriptor("urn:a"))

	require.NoError(t, r.Register("amp.so", lib))

	got, ok := r.Lookup("amp.so")
	require.True(t, ok)
	desc, ok := got.Descriptor(0)
	require.True(t, ok)
	assert.Equal(t, "urn:a", desc.URI())

	_, ok = r.Lookup("missing.so")
	assert.False(t, ok)
}

func TestRegistry_StrictMode(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("amp.so", Descriptors()))
	err := r.Register("amp.so", Descriptors())
	assert.ErrorContains(t, err, "already registered")

	lenient := NewRegistry(WithStrictMode(false))
	require.NoError(t, lenient.Register("amp.so", Descriptors(nopDescriptor("urn:a"))))
	require.NoError(t, lenient.Register("amp.so", Descriptors(nopDescriptor("urn:b"))))
	got, _ := lenient.Lookup("amp.so")
	desc, _ := got.Descriptor(0)
	assert.Equal(t, "urn:b", desc.URI())
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", Descriptors()))
	assert.Error(t, r.Register("x.so", nil))
}

func TestRegistry_ListAndUnregister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("b.so", Descriptors()))
	require.NoError(t, r.Register("a.so", Descriptors()))
	assert.Equal(t, []string{"a.so", "b.so"}, r.List())

	assert.True(t, r.Unregister("a.so"))
	assert.False(t, r.Unregister("a.so"))
	assert.Equal(t, []string{"b.so"}, r.List())
}

func TestDescriptorTable(t *testing.T) {
	table := Descriptors(nopDescriptor("urn:a"), nopDescriptor("urn:b"))
	var uris []string
	for i := uint32(0); ; i++ {
		d, ok := table.Descriptor(i)
		if !ok {
			break
		}
		uris = append(uris, d.URI())
	}
	assert.Equal(t, []string{"urn:a", "urn:b"}, uris)
	assert.NoError(t, table.Close())
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
	var _ ports.LibraryRegistry = Default()
}
