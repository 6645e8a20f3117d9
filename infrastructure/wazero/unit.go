package wazero

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/internal/abi"
	"github.com/tetratelabs/wazero/api"
)

// portBuffer is a port's buffer in guest memory.
type portBuffer struct {
	spec  entities.PortSpec
	guest uint32
}

// unitHandle drives one unit in its own module instance.
type unitHandle struct {
	ctx      context.Context
	mod      api.Module
	mem      api.Memory
	unit     *unitContext
	handle   uint32
	maxBlock uint32

	allocate   api.Function
	connect    api.Function
	run        api.Function
	activate   api.Function // nil when not exported
	deactivate api.Function // nil when not exported
	cleanup    api.Function

	buffers []portBuffer
	host    []unsafe.Pointer // caller buffers by port index

	runStack  []uint64
	hookStack []uint64
	trap      error // first guest failure; later calls do nothing
}

func newUnitHandle(ctx context.Context, mod api.Module, maxBlock uint32, layout entities.PortLayout, u *unitContext) (*unitHandle, error) {
	h := &unitHandle{
		ctx:        ctx,
		mod:        mod,
		mem:        mod.Memory(),
		unit:       u,
		maxBlock:   maxBlock,
		allocate:   mod.ExportedFunction(abi.ExportAllocate),
		connect:    mod.ExportedFunction(abi.ExportConnectPort),
		run:        mod.ExportedFunction(abi.ExportRun),
		activate:   mod.ExportedFunction(abi.ExportActivate),
		deactivate: mod.ExportedFunction(abi.ExportDeactivate),
		cleanup:    mod.ExportedFunction(abi.ExportCleanup),
		runStack:   make([]uint64, 2),
		hookStack:  make([]uint64, 1),
	}
	if h.mem == nil {
		return nil, fmt.Errorf("module does not export %q", abi.ExportMemory)
	}

	size := 0
	for _, spec := range layout {
		size = max(size, int(spec.Index)+1)
	}
	h.host = make([]unsafe.Pointer, size)
	for _, spec := range layout {
		if spec.BufferBytes(maxBlock) > 0 {
			h.buffers = append(h.buffers, portBuffer{spec: spec})
		}
	}
	return h, nil
}

// connectBuffers allocates a guest buffer for every port and connects it.
func (h *unitHandle) connectBuffers() error {
	for i := range h.buffers {
		b := &h.buffers[i]
		res, err := h.allocate.Call(h.ctx, uint64(b.spec.BufferBytes(h.maxBlock)))
		if err != nil {
			return fmt.Errorf("%s: %w", abi.ExportAllocate, err)
		}
		b.guest = api.DecodeU32(res[0])
		if b.guest == 0 {
			return fmt.Errorf("%s returned a null pointer for port %d", abi.ExportAllocate, b.spec.Index)
		}
		if _, err := h.connect.Call(h.ctx, uint64(h.handle), uint64(b.spec.Index), uint64(b.guest)); err != nil {
			return fmt.Errorf("%s: %w", abi.ExportConnectPort, err)
		}
	}
	return nil
}

// ConnectPort records the caller's buffer for port. Data is copied between
// it and the guest buffer around every run.
func (h *unitHandle) ConnectPort(port uint32, data unsafe.Pointer) {
	if int(port) < len(h.host) {
		h.host[port] = data
	}
}

func (h *unitHandle) Activate() {
	h.callHook(h.activate)
}

func (h *unitHandle) Deactivate() {
	h.callHook(h.deactivate)
}

func (h *unitHandle) callHook(fn api.Function) {
	if fn == nil || h.trap != nil {
		return
	}
	h.hookStack[0] = uint64(h.handle)
	if err := fn.CallWithStack(h.ctx, h.hookStack); err != nil {
		h.trap = err
	}
}

// Run processes frames in blocks of at most the loader's block length.
func (h *unitHandle) Run(frames uint32) {
	if h.trap != nil {
		return
	}
	var offset uint32
	for {
		n := min(frames-offset, h.maxBlock)
		h.copyIn(offset, n)
		h.runStack[0] = uint64(h.handle)
		h.runStack[1] = uint64(n)
		if err := h.run.CallWithStack(h.ctx, h.runStack); err != nil {
			h.trap = err
			return
		}
		h.copyOut(offset, n)
		offset += n
		if offset >= frames {
			return
		}
	}
}

// span returns the bytes of a port buffer covering frames [offset,
// offset+n), relative to the start of the buffer.
func span(spec entities.PortSpec, offset, n uint32) (start, size uint32) {
	switch spec.Kind {
	case entities.PortControl:
		return 0, 4
	default:
		return offset * 4, n * 4
	}
}

func (h *unitHandle) copyIn(offset, n uint32) {
	for _, b := range h.buffers {
		data := h.host[b.spec.Index]
		if b.spec.Output || data == nil {
			continue
		}
		start, size := span(b.spec, offset, n)
		if size == 0 {
			continue
		}
		src := unsafe.Slice((*byte)(unsafe.Add(data, start)), size)
		h.mem.Write(b.guest, src)
	}
}

func (h *unitHandle) copyOut(offset, n uint32) {
	for _, b := range h.buffers {
		data := h.host[b.spec.Index]
		if !b.spec.Output || data == nil {
			continue
		}
		start, size := span(b.spec, offset, n)
		if size == 0 {
			continue
		}
		src, ok := h.mem.Read(b.guest, size)
		if !ok {
			continue
		}
		copy(unsafe.Slice((*byte)(unsafe.Add(data, start)), size), src)
	}
}

// Cleanup destroys the unit and closes its module instance.
func (h *unitHandle) Cleanup() {
	if h.trap != nil {
		h.unit.logger.Warn("wazero: unit trapped; skipping cleanup hook", "error", h.trap)
	} else {
		h.hookStack[0] = uint64(h.handle)
		if err := h.cleanup.CallWithStack(h.ctx, h.hookStack); err != nil {
			h.unit.logger.Warn("wazero: cleanup failed", "error", err)
		}
	}
	if err := h.mod.Close(h.ctx); err != nil {
		h.unit.logger.Warn("wazero: closing module failed", "error", err)
	}
}
