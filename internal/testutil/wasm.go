package testutil

import "github.com/reglet-dev/lv2host/internal/abi"

// WasmAmpURI is the descriptor URI of the module built by WasmAmp.
const WasmAmpURI = "urn:lv2host:test:wasm-amp"

// WasmAmpMessage is logged by the WasmAmp unit on activation.
const WasmAmpMessage = WasmAmpURI

type wasmConfig struct {
	uri    string
	trap   bool
	refuse bool
}

// WasmOption configures WasmAmp.
type WasmOption func(*wasmConfig)

// WithWasmURI sets the descriptor URI.
func WithWasmURI(uri string) WasmOption {
	return func(c *wasmConfig) { c.uri = uri }
}

// WithTrappingRun makes lv2_run execute unreachable.
func WithTrappingRun() WasmOption {
	return func(c *wasmConfig) { c.trap = true }
}

// WithRefusedInstantiation makes lv2_instantiate return a null handle.
func WithRefusedInstantiation() WasmOption {
	return func(c *wasmConfig) { c.refuse = true }
}

// Guest memory layout of WasmAmp.
const (
	wasmActivations   = 0  // i32 activation count
	wasmDeactivations = 4  // i32 deactivation count
	wasmURID          = 8  // i32 id returned by urid_map
	wasmRuns          = 12 // i32 run count
	wasmPorts         = 16 // i32 buffer pointer per port
	wasmURIAddr       = 64 // descriptor URI
	wasmHeap          = 1024
)

// WasmAmp assembles a WebAssembly unit implementing the unit ABI with one
// descriptor: an amplifier with a gain control input (port 0), an audio
// input (port 1) and an audio output (port 2). Instantiation maps its own
// URI through urid_map and activation logs WasmAmpMessage at note level.
func WasmAmp(opts ...WasmOption) []byte {
	cfg := wasmConfig{uri: WasmAmpURI}
	for _, opt := range opts {
		opt(&cfg)
	}
	uriLen := int64(len(cfg.uri))

	const (
		i32 = 0x7f
		i64 = 0x7e
		f64 = 0x7c
	)
	types := [][2][]byte{
		{{i32, i32}, {i32}},      // 0 urid_map
		{{i32, i32, i32}, {}},    // 1 log, connect_port
		{{i32}, {i32}},           // 2 allocate
		{{i32}, {i64}},           // 3 descriptor_uri
		{{i32, f64}, {i32}},      // 4 instantiate
		{{i32, i32}, {}},         // 5 run
		{{i32}, {}},              // 6 activate, deactivate, cleanup
	}
	var typeSec []byte
	typeSec = append(typeSec, uleb(uint64(len(types)))...)
	for _, t := range types {
		typeSec = append(typeSec, 0x60)
		typeSec = append(typeSec, vec(t[0])...)
		typeSec = append(typeSec, vec(t[1])...)
	}

	var importSec []byte
	importSec = append(importSec, uleb(2)...)
	importSec = append(importSec, name(abi.HostModule)...)
	importSec = append(importSec, name(abi.ImportURIDMap)...)
	importSec = append(importSec, 0x00, 0)
	importSec = append(importSec, name(abi.HostModule)...)
	importSec = append(importSec, name(abi.ImportLog)...)
	importSec = append(importSec, 0x00, 1)

	// Defined functions start at index 2.
	funcTypes := []byte{2, 3, 4, 1, 5, 6, 6, 6}
	funcSec := vec(funcTypes)

	memSec := []byte{1, 0x00, 2} // one memory, min 2 pages

	globalSec := []byte{1, i32, 0x01}
	globalSec = append(globalSec, i32Const(wasmHeap)...)
	globalSec = append(globalSec, 0x0b)

	exports := []struct {
		name  string
		kind  byte
		index byte
	}{
		{abi.ExportMemory, 0x02, 0},
		{abi.ExportAllocate, 0x00, 2},
		{abi.ExportDescriptorURI, 0x00, 3},
		{abi.ExportInstantiate, 0x00, 4},
		{abi.ExportConnectPort, 0x00, 5},
		{abi.ExportRun, 0x00, 6},
		{abi.ExportActivate, 0x00, 7},
		{abi.ExportDeactivate, 0x00, 8},
		{abi.ExportCleanup, 0x00, 9},
	}
	var exportSec []byte
	exportSec = append(exportSec, uleb(uint64(len(exports)))...)
	for _, e := range exports {
		exportSec = append(exportSec, name(e.name)...)
		exportSec = append(exportSec, e.kind, e.index)
	}

	packed := int64(abi.PackPtrLen(wasmURIAddr, uint32(uriLen))) //nolint:gosec // G115: small constants

	allocate := code(nil,
		[]byte{0x23, 0}, // global.get heap
		[]byte{0x23, 0}, // global.get heap
		[]byte{0x20, 0}, // local.get size
		[]byte{0x6a},    // i32.add
		[]byte{0x24, 0}, // global.set heap
	)
	descriptorURI := code(nil,
		[]byte{0x20, 0, 0x45},  // local.get index; i32.eqz
		[]byte{0x04, i64},      // if (result i64)
		i64Const(packed),
		[]byte{0x05},           // else
		i64Const(0),
		[]byte{0x0b},           // end
	)
	var instantiate []byte
	if cfg.refuse {
		instantiate = code(nil, i32Const(0))
	} else {
		instantiate = code(nil,
			i32Const(wasmURID),
			i32Const(wasmURIAddr), i32Const(uriLen),
			[]byte{0x10, 0},        // call urid_map
			[]byte{0x36, 2, 0},     // i32.store
			i32Const(1),
		)
	}
	connectPort := code(nil,
		[]byte{0x20, 1}, i32Const(4), []byte{0x6c}, // port * 4
		[]byte{0x20, 2},
		[]byte{0x36, 2, wasmPorts}, // i32.store offset=16
	)
	var run []byte
	if cfg.trap {
		run = code(nil, []byte{0x00})
	} else {
		run = code([]byte{1, 1, i32}, // one i32 local: frame
			[]byte{0x02, 0x40}, // block
			[]byte{0x03, 0x40}, // loop
			[]byte{0x20, 2, 0x20, 1, 0x4f, 0x0d, 1}, // br_if 1 (frame >= n)
			// out + frame*4
			i32Const(0), []byte{0x28, 2, wasmPorts + 8},
			[]byte{0x20, 2}, i32Const(4), []byte{0x6c, 0x6a},
			// in[frame]
			i32Const(0), []byte{0x28, 2, wasmPorts + 4},
			[]byte{0x20, 2}, i32Const(4), []byte{0x6c, 0x6a},
			[]byte{0x2a, 2, 0},
			// gain
			i32Const(0), []byte{0x28, 2, wasmPorts},
			[]byte{0x2a, 2, 0},
			[]byte{0x94},       // f32.mul
			[]byte{0x38, 2, 0}, // f32.store
			[]byte{0x20, 2}, i32Const(1), []byte{0x6a, 0x21, 2}, // frame++
			[]byte{0x0c, 0}, // br 0
			[]byte{0x0b},    // end loop
			[]byte{0x0b},    // end block
			increment(wasmRuns),
		)
	}
	activate := code(nil,
		increment(wasmActivations),
		i32Const(1), i32Const(wasmURIAddr), i32Const(uriLen),
		[]byte{0x10, 1}, // call log
	)
	deactivate := code(nil, increment(wasmDeactivations))
	cleanup := code(nil)

	bodies := [][]byte{allocate, descriptorURI, instantiate, connectPort, run, activate, deactivate, cleanup}
	var codeSec []byte
	codeSec = append(codeSec, uleb(uint64(len(bodies)))...)
	for _, b := range bodies {
		codeSec = append(codeSec, b...)
	}

	dataSec := []byte{1, 0x00}
	dataSec = append(dataSec, i32Const(wasmURIAddr)...)
	dataSec = append(dataSec, 0x0b)
	dataSec = append(dataSec, vec([]byte(cfg.uri))...)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range []struct {
		id   byte
		body []byte
	}{
		{1, typeSec},
		{2, importSec},
		{3, funcSec},
		{5, memSec},
		{6, globalSec},
		{7, exportSec},
		{10, codeSec},
		{11, dataSec},
	} {
		out = append(out, s.id)
		out = append(out, vec(s.body)...)
	}
	return out
}

// code encodes a function body from its locals declaration and
// instructions, appending the final end.
func code(locals []byte, instrs ...[]byte) []byte {
	if locals == nil {
		locals = []byte{0}
	}
	body := append([]byte(nil), locals...)
	for _, in := range instrs {
		body = append(body, in...)
	}
	body = append(body, 0x0b)
	return vec(body)
}

// increment adds one to the i32 at addr.
func increment(addr int64) []byte {
	var b []byte
	b = append(b, i32Const(addr)...)
	b = append(b, i32Const(addr)...)
	b = append(b, 0x28, 2, 0) // i32.load
	b = append(b, i32Const(1)...)
	b = append(b, 0x6a)       // i32.add
	b = append(b, 0x36, 2, 0) // i32.store
	return b
}

func i32Const(v int64) []byte { return append([]byte{0x41}, sleb(v)...) }
func i64Const(v int64) []byte { return append([]byte{0x42}, sleb(v)...) }

func name(s string) []byte { return vec([]byte(s)) }

func vec(b []byte) []byte {
	return append(uleb(uint64(len(b))), b...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0)
		if !done {
			c |= 0x80
		}
		out = append(out, c)
		if done {
			return out
		}
	}
}
