package wazero

import (
	"context"
	"errors"
	"fmt"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/feature"
	"github.com/reglet-dev/lv2host/internal/abi"
	"github.com/reglet-dev/lv2host/vocabulary"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// library is a compiled module and the runtime it lives in.
type library struct {
	path        string
	runtime     wazero.Runtime
	compiled    wazero.CompiledModule
	config      LoaderConfig
	descriptors []*descriptor
}

func (l *library) Descriptor(index uint32) (ports.UnitDescriptor, bool) {
	if uint64(index) >= uint64(len(l.descriptors)) {
		return nil, false
	}
	return l.descriptors[index], true
}

// Close closes the runtime and every module instantiated in it.
func (l *library) Close() error {
	return l.runtime.Close(context.Background())
}

func (l *library) instantiateModule(ctx context.Context) (api.Module, error) {
	return l.runtime.InstantiateModule(ctx, l.compiled, wazero.NewModuleConfig().WithName(""))
}

// descriptorURIs reads the descriptor table from a probe instance.
func (l *library) descriptorURIs(ctx context.Context) ([]string, error) {
	probe, err := l.instantiateModule(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	defer probe.Close(ctx)

	fn := probe.ExportedFunction(abi.ExportDescriptorURI)
	var uris []string
	for i := range uint64(maxDescriptors) {
		res, err := fn.Call(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("%s(%d): %w", abi.ExportDescriptorURI, i, err)
		}
		if res[0] == 0 {
			return uris, nil
		}
		ptr, length, ok := abi.UnpackPtrLen(res[0])
		if !ok {
			return nil, fmt.Errorf("%s(%d): invalid packed pointer", abi.ExportDescriptorURI, i)
		}
		uri, err := readString(probe.Memory(), ptr, length, l.config.MaxStringSize)
		if err != nil {
			return nil, fmt.Errorf("%s(%d): %w", abi.ExportDescriptorURI, i, err)
		}
		uris = append(uris, uri)
	}
	return nil, fmt.Errorf("module declares more than %d descriptors", maxDescriptors)
}

// descriptor is one entry of a library's descriptor table.
type descriptor struct {
	lib   *library
	index uint32
	uri   string
}

func (d *descriptor) URI() string { return d.uri }

var errNoLayout = errors.New("port layout feature not supplied")

// Instantiate creates a module instance for the unit, constructs the unit in
// it and connects every port to a guest buffer.
func (d *descriptor) Instantiate(sampleRate float64, bundlePath string, features []entities.Feature) (ports.UnitHandle, error) {
	layoutFeature, ok := feature.Find(features, vocabulary.PortLayoutFeature)
	if !ok {
		return nil, errNoLayout
	}
	layout, ok := layoutFeature.Data.(entities.PortLayout)
	if !ok {
		return nil, errNoLayout
	}

	u := &unitContext{uri: d.uri, logger: d.lib.config.Logger.With("unit", d.uri, "bundle", bundlePath)}
	if f, ok := feature.Find(features, vocabulary.URIDMap); ok {
		mapper, err := feature.FromFeature(f)
		if err != nil {
			return nil, err
		}
		u.mapper = mapper
	}
	ctx := withUnit(context.Background(), u)

	mod, err := d.lib.instantiateModule(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}
	h, err := newUnitHandle(ctx, mod, d.lib.config.MaxBlockLength, layout, u)
	if err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}

	res, err := mod.ExportedFunction(abi.ExportInstantiate).Call(ctx, uint64(d.index), api.EncodeF64(sampleRate))
	if err != nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("%s: %w", abi.ExportInstantiate, err)
	}
	h.handle = api.DecodeU32(res[0])
	if h.handle == 0 {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("unit %s refused construction", d.uri)
	}
	if err := h.connectBuffers(); err != nil {
		_ = mod.Close(ctx)
		return nil, err
	}
	return h, nil
}
