package wazero

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/feature"
	"github.com/reglet-dev/lv2host/internal/testutil"
	hostlog "github.com/reglet-dev/lv2host/log"
	"github.com/reglet-dev/lv2host/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ampLayout = entities.PortLayout{
	{Index: 0, Kind: entities.PortControl},
	{Index: 1, Kind: entities.PortAudio},
	{Index: 2, Kind: entities.PortAudio, Output: true},
}

func layoutFeature() entities.Feature {
	return entities.Feature{URI: vocabulary.PortLayoutFeature, Data: ampLayout}
}

func loadAmp(t *testing.T, logger *slog.Logger, blockLength uint32, opts ...testutil.WasmOption) ports.UnitLibrary {
	t.Helper()
	loader := NewLoader(WithLogger(logger), WithMaxBlockLength(blockLength))
	lib, err := loader.LoadBytes(context.Background(), "amp.wasm", testutil.WasmAmp(opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

func TestDefaultLoaderConfig(t *testing.T) {
	cfg := defaultLoaderConfig()

	assert.Equal(t, "lv2", cfg.ModuleName)
	assert.Equal(t, uint32(DefaultMaxBlockLength), cfg.MaxBlockLength)
	assert.Equal(t, uint32(DefaultMaxStringSize), cfg.MaxStringSize)
	assert.NotNil(t, cfg.Logger)
}

func TestLoaderOptions(t *testing.T) {
	cfg := defaultLoaderConfig()
	WithModuleName("custom")(&cfg)
	WithMaxBlockLength(64)(&cfg)
	WithMaxStringSize(128)(&cfg)

	assert.Equal(t, "custom", cfg.ModuleName)
	assert.Equal(t, uint32(64), cfg.MaxBlockLength)
	assert.Equal(t, uint32(128), cfg.MaxStringSize)

	WithMaxBlockLength(0)(&cfg)
	assert.Equal(t, uint32(64), cfg.MaxBlockLength, "zero keeps the previous value")
}

func TestLoader_DescriptorTable(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 64)

	desc, ok := lib.Descriptor(0)
	require.True(t, ok)
	assert.Equal(t, testutil.WasmAmpURI, desc.URI())

	_, ok = lib.Descriptor(1)
	assert.False(t, ok)
}

func TestLoader_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amp.wasm")
	require.NoError(t, os.WriteFile(path, testutil.WasmAmp(), 0o600))

	lib, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	defer lib.Close()

	desc, ok := lib.Descriptor(0)
	require.True(t, ok)
	assert.Equal(t, testutil.WasmAmpURI, desc.URI())
}

func TestLoader_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewLoader().Load(ctx, filepath.Join(t.TempDir(), "missing.wasm"))
	assert.ErrorContains(t, err, "failed to read module")

	_, err = NewLoader().LoadBytes(ctx, "bad.wasm", []byte("not wasm"))
	assert.ErrorContains(t, err, "failed to compile module")

	_, err = NewLoader(WithMaxStringSize(4)).LoadBytes(ctx, "amp.wasm", testutil.WasmAmp())
	assert.ErrorContains(t, err, "exceeds maximum")
}

func TestUnit_RunChunksThroughGuestBuffers(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 4)
	desc, _ := lib.Descriptor(0)

	urids := feature.NewURIDMap(nil)
	h, err := desc.Instantiate(48000, "/bundles/amp.lv2/", []entities.Feature{urids.Feature(), layoutFeature()})
	require.NoError(t, err)
	defer h.Cleanup()

	_, mapped := urids.Unmap(1)
	assert.True(t, mapped, "instantiation maps the unit URI through urid_map")

	gain := []float32{2}
	in := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := make([]float32, len(in))
	h.ConnectPort(0, unsafe.Pointer(&gain[0]))
	h.ConnectPort(1, unsafe.Pointer(&in[0]))
	h.ConnectPort(2, unsafe.Pointer(&out[0]))

	h.(ports.Activator).Activate()
	h.Run(uint32(len(in)))

	assert.Equal(t, []float32{2, 4, 6, 8, 10, 12, 14, 16, 18, 20}, out)

	gain[0] = 0.5
	h.Run(2)
	assert.Equal(t, []float32{0.5, 1}, out[:2])
	assert.Equal(t, float32(6), out[2], "frames past the count are untouched")
}

func TestUnit_LogsThroughHost(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(hostlog.NewHandler(&buf, hostlog.WithLevel(slog.LevelDebug)))
	lib := loadAmp(t, logger, 16)
	desc, _ := lib.Descriptor(0)

	h, err := desc.Instantiate(44100, "/b/", []entities.Feature{layoutFeature()})
	require.NoError(t, err)
	defer h.Cleanup()

	h.(ports.Activator).Activate()
	assert.Contains(t, buf.String(), testutil.WasmAmpMessage)
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestUnit_WithoutURIDMap(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 16)
	desc, _ := lib.Descriptor(0)

	h, err := desc.Instantiate(44100, "/b/", []entities.Feature{layoutFeature()})
	require.NoError(t, err)
	h.Cleanup()
}

func TestUnit_RequiresLayout(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 16)
	desc, _ := lib.Descriptor(0)

	_, err := desc.Instantiate(44100, "/b/", nil)
	assert.ErrorIs(t, err, errNoLayout)

	_, err = desc.Instantiate(44100, "/b/", []entities.Feature{{URI: vocabulary.PortLayoutFeature, Data: "x"}})
	assert.ErrorIs(t, err, errNoLayout)
}

func TestUnit_RefusedConstruction(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 16, testutil.WithRefusedInstantiation())
	desc, _ := lib.Descriptor(0)

	_, err := desc.Instantiate(44100, "/b/", []entities.Feature{layoutFeature()})
	assert.ErrorContains(t, err, "refused construction")
}

func TestUnit_TrapStopsProcessing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(hostlog.NewHandler(&buf))
	lib := loadAmp(t, logger, 16, testutil.WithTrappingRun())
	desc, _ := lib.Descriptor(0)

	h, err := desc.Instantiate(44100, "/b/", []entities.Feature{layoutFeature()})
	require.NoError(t, err)

	gain := []float32{1}
	in := []float32{1, 1}
	out := []float32{-1, -1}
	h.ConnectPort(0, unsafe.Pointer(&gain[0]))
	h.ConnectPort(1, unsafe.Pointer(&in[0]))
	h.ConnectPort(2, unsafe.Pointer(&out[0]))

	assert.NotPanics(t, func() {
		h.Run(2)
		h.Run(2)
	})
	assert.Equal(t, []float32{-1, -1}, out)

	h.Cleanup()
	assert.Contains(t, buf.String(), "unit trapped")
}

func TestUnit_InstancesDoNotShareMemory(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 8)
	desc, _ := lib.Descriptor(0)

	a, err := desc.Instantiate(44100, "/b/", []entities.Feature{layoutFeature()})
	require.NoError(t, err)
	defer a.Cleanup()
	b, err := desc.Instantiate(44100, "/b/", []entities.Feature{layoutFeature()})
	require.NoError(t, err)
	defer b.Cleanup()

	gainA, gainB := []float32{2}, []float32{3}
	in := []float32{1}
	outA, outB := []float32{0}, []float32{0}
	a.ConnectPort(0, unsafe.Pointer(&gainA[0]))
	a.ConnectPort(1, unsafe.Pointer(&in[0]))
	a.ConnectPort(2, unsafe.Pointer(&outA[0]))
	b.ConnectPort(0, unsafe.Pointer(&gainB[0]))
	b.ConnectPort(1, unsafe.Pointer(&in[0]))
	b.ConnectPort(2, unsafe.Pointer(&outB[0]))

	a.Run(1)
	b.Run(1)
	assert.Equal(t, float32(2), outA[0])
	assert.Equal(t, float32(3), outB[0])
}

func TestReadString(t *testing.T) {
	lib := loadAmp(t, slog.Default(), 8)
	l := lib.(*library)
	mod, err := l.instantiateModule(context.Background())
	require.NoError(t, err)
	defer mod.Close(context.Background())

	s, err := readString(mod.Memory(), 64, uint32(len(testutil.WasmAmpURI)), 1024)
	require.NoError(t, err)
	assert.Equal(t, testutil.WasmAmpURI, s)

	_, err = readString(mod.Memory(), 0xFFFFFFF0, 64, 1024)
	assert.ErrorContains(t, err, "out of range")
}
