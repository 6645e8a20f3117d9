// Package wazero loads units compiled to WebAssembly with the wazero runtime.
//
// A unit binary whose lv2:binary ends in ".wasm" is compiled once per
// library. Each instantiation gets its own module instance so units never
// share linear memory. The module imports the host module "lv2":
//
//	urid_map(ptr, len i32) -> i32      map a URI to an integer id
//	log(level, ptr, len i32)           write a log message
//
// and exports memory, allocate, lv2_descriptor_uri, lv2_instantiate,
// lv2_connect_port, lv2_run and lv2_cleanup, plus optional lv2_activate and
// lv2_deactivate. See package internal/abi for their signatures.
//
// # Port buffers
//
// A unit cannot address host memory, so every port is backed by a buffer
// allocated in guest memory at instantiation, sized for MaxBlockLength
// frames. Run copies input ports into guest memory before each block and
// output ports back out after it, processing at most MaxBlockLength frames
// per guest call.
//
// # Basic Usage
//
//	loader := wazero.NewLoader(wazero.WithMaxBlockLength(1024))
//	lib, err := loader.Load(ctx, "/usr/lib/lv2/amp.lv2/amp.wasm")
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
package wazero
