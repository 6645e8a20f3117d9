package host

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/internal/fileuri"
	"github.com/reglet-dev/lv2host/vocabulary"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Instantiate constructs the plugin's unit at sampleRate with the given host
// features. It fails with *MissingFeaturesError when a required feature is
// not supplied, and with *InstantiateError when the binary cannot be opened
// or the unit refuses construction.
//
// The World stays alive until the returned Instance is released.
func (p Plugin) Instantiate(ctx context.Context, sampleRate float64, features []entities.Feature) (inst *Instance, err error) {
	if p.world == nil || p.data == nil {
		return nil, domainerrors.ErrPluginNotFound
	}
	w := p.world
	uri := p.data.uri

	ctx, span := w.tracer.Start(ctx, "Plugin.Instantiate", trace.WithAttributes(
		attribute.String("lv2.plugin", uri),
		attribute.Float64("lv2.sample_rate", sampleRate),
	))
	defer func() { endSpan(span, err) }()

	if err := w.retain(); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = w.release()
		}
	}()

	var (
		binary  entities.Term
		hasBin  bool
		missing []string
		layout  entities.PortLayout
	)
	w.mu.Lock()
	if p.data.unloaded || w.destroyed {
		w.mu.Unlock()
		return nil, &domainerrors.InstantiateError{Plugin: uri, Err: domainerrors.ErrPluginUnloaded}
	}
	w.ensureLoadedLocked(p.data)
	for _, req := range w.objectTermsLocked(p.data.term(), entities.URI(vocabulary.LV2RequiredFeature)) {
		if req.Value == vocabulary.PortLayoutFeature {
			continue
		}
		if !slices.ContainsFunc(features, func(f entities.Feature) bool { return f.URI == req.Value }) {
			missing = append(missing, req.Value)
		}
	}
	binary, hasBin = w.firstObjectTermLocked(p.data.term(), entities.URI(vocabulary.LV2Binary))
	layout = w.layoutLocked(p.data)
	w.mu.Unlock()

	if len(missing) > 0 {
		return nil, &domainerrors.MissingFeaturesError{Plugin: uri, Missing: missing}
	}
	if !hasBin || binary.Kind != entities.KindURI {
		return nil, &domainerrors.InstantiateError{Plugin: uri, Err: errors.New("no lv2:binary")}
	}
	path, _, ok := fileuri.Parse(binary.Value)
	if !ok {
		return nil, &domainerrors.InstantiateError{Plugin: uri, Err: fmt.Errorf("binary %s is not a file URI", binary.Value)}
	}
	bundlePath, _, _ := fileuri.Parse(p.data.bundleURI)

	lib, err := w.libraryFor(ctx, path)
	if err != nil {
		return nil, &domainerrors.InstantiateError{Plugin: uri, Err: err}
	}
	desc, ok := findDescriptor(lib, uri)
	if !ok {
		return nil, &domainerrors.InstantiateError{Plugin: uri, Err: domainerrors.ErrDescriptorNotFound}
	}

	all := append(slices.Clip(features), entities.Feature{URI: vocabulary.PortLayoutFeature, Data: layout})
	handle, err := desc.Instantiate(sampleRate, bundlePath, all)
	if err != nil {
		return nil, &domainerrors.InstantiateError{Plugin: uri, Err: err}
	}
	if handle == nil {
		return nil, &domainerrors.InstantiateError{Plugin: uri}
	}

	w.logger.Debug("instantiated plugin", "plugin", uri, "sample_rate", sampleRate)
	return newInstance(&instanceCore{world: w, uri: uri, desc: desc, handle: handle}), nil
}

// instanceCore is the constructed unit. Exactly one wrapper owns it at a
// time.
type instanceCore struct {
	world  *World
	uri    string
	desc   ports.UnitDescriptor
	handle ports.UnitHandle
	active bool
}

// release runs the deactivation hook if the unit is active, then cleanup,
// then drops the unit's reference to the World.
func (c *instanceCore) release() error {
	if c.active {
		if d, ok := c.handle.(ports.Deactivator); ok {
			d.Deactivate()
		}
		c.active = false
	}
	c.handle.Cleanup()
	return c.world.release()
}

func (c *instanceCore) extensionData(uri string) (any, bool) {
	if x, ok := c.desc.(ports.ExtensionDataProvider); ok {
		return x.ExtensionData(uri)
	}
	return nil, false
}

// handleRef ties a core to its owning wrapper and releases the core if the
// wrapper becomes unreachable without being consumed.
type handleRef struct {
	core    *instanceCore
	cleanup runtime.Cleanup
}

func (r *handleRef) take() *instanceCore {
	if r.core == nil {
		panic("host: instance used after Activate, Deactivate or Close")
	}
	c := r.core
	r.core = nil
	r.cleanup.Stop()
	return c
}

func (r *handleRef) get() *instanceCore {
	if r.core == nil {
		panic("host: instance used after Activate, Deactivate or Close")
	}
	return r.core
}

func releaseDropped(c *instanceCore) {
	if err := c.release(); err != nil {
		c.world.logger.Warn("releasing dropped instance", "plugin", c.uri, "error", err)
	}
}

// Instance is an instantiated unit that has not been activated. It has no
// Run method; call Activate first.
//
// Instances may be moved between goroutines but not used concurrently.
type Instance struct {
	ref handleRef
}

func newInstance(c *instanceCore) *Instance {
	inst := &Instance{ref: handleRef{core: c}}
	inst.ref.cleanup = runtime.AddCleanup(inst, releaseDropped, c)
	return inst
}

// URI returns the plugin URI.
func (i *Instance) URI() string { return i.ref.get().uri }

// ConnectPort connects port to a caller-owned buffer. Every port that is not
// lv2:connectionOptional must be connected before the first Run. The index
// must be below the plugin's port count.
func (i *Instance) ConnectPort(port uint32, data unsafe.Pointer) {
	i.ref.get().handle.ConnectPort(port, data)
	runtime.KeepAlive(i)
}

// ConnectPortFloat32 connects port to buf. The caller keeps buf alive and
// unmoved while it is connected.
func (i *Instance) ConnectPortFloat32(port uint32, buf []float32) {
	i.ConnectPort(port, unsafe.Pointer(unsafe.SliceData(buf)))
}

// ExtensionData returns the extension interface the unit provides for uri.
func (i *Instance) ExtensionData(uri string) (any, bool) {
	defer runtime.KeepAlive(i)
	return i.ref.get().extensionData(uri)
}

// Activate runs the unit's activation hook, if any, and returns the active
// instance. i must not be used afterwards.
func (i *Instance) Activate() *ActiveInstance {
	c := i.ref.take()
	if a, ok := c.handle.(ports.Activator); ok {
		a.Activate()
	}
	c.active = true
	return newActiveInstance(c)
}

// Close runs the unit's cleanup hook and releases its World reference.
// Closing an instance that was already consumed does nothing.
func (i *Instance) Close() error {
	if i.ref.core == nil {
		return nil
	}
	return i.ref.take().release()
}

// ActiveInstance is an activated unit, the only state in which Run is
// available.
type ActiveInstance struct {
	ref handleRef
}

func newActiveInstance(c *instanceCore) *ActiveInstance {
	a := &ActiveInstance{ref: handleRef{core: c}}
	a.ref.cleanup = runtime.AddCleanup(a, releaseDropped, c)
	return a
}

// URI returns the plugin URI.
func (a *ActiveInstance) URI() string { return a.ref.get().uri }

// ConnectPort connects port to a caller-owned buffer. It may be called
// between runs to swap buffers.
func (a *ActiveInstance) ConnectPort(port uint32, data unsafe.Pointer) {
	a.ref.get().handle.ConnectPort(port, data)
	runtime.KeepAlive(a)
}

// ConnectPortFloat32 connects port to buf.
func (a *ActiveInstance) ConnectPortFloat32(port uint32, buf []float32) {
	a.ConnectPort(port, unsafe.Pointer(unsafe.SliceData(buf)))
}

// ExtensionData returns the extension interface the unit provides for uri.
func (a *ActiveInstance) ExtensionData(uri string) (any, bool) {
	defer runtime.KeepAlive(a)
	return a.ref.get().extensionData(uri)
}

// Run processes frames frames. Counts above the unit's 32-bit limit are
// split into consecutive runs. A zero count is passed through once.
//
// Run does not lock, block or allocate.
func (a *ActiveInstance) Run(frames uint64) {
	h := a.ref.get().handle
	if frames == 0 {
		h.Run(0)
	}
	for frames > 0 {
		n := min(frames, math.MaxUint32)
		h.Run(uint32(n))
		frames -= n
	}
	// The cleanup attached to a must not run while the unit is processing.
	runtime.KeepAlive(a)
}

// Deactivate runs the unit's deactivation hook, if any, and returns the
// inactive instance. Port connections are kept. a must not be used
// afterwards.
func (a *ActiveInstance) Deactivate() *Instance {
	c := a.ref.take()
	if d, ok := c.handle.(ports.Deactivator); ok {
		d.Deactivate()
	}
	c.active = false
	return newInstance(c)
}

// Close deactivates the unit, runs its cleanup hook and releases its World
// reference. Closing an instance that was already consumed does nothing.
func (a *ActiveInstance) Close() error {
	if a.ref.core == nil {
		return nil
	}
	return a.ref.take().release()
}
