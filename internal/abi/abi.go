// Package abi names the exports and imports of the WebAssembly unit ABI and
// the packed pointer/length encoding used to pass strings across it.
package abi

// HostModule is the import module the host provides to units.
const HostModule = "lv2"

// Guest exports.
const (
	ExportMemory        = "memory"
	ExportAllocate      = "allocate"           // (size i32) -> ptr i32
	ExportDescriptorURI = "lv2_descriptor_uri" // (index i32) -> packed i64, 0 past the end
	ExportInstantiate   = "lv2_instantiate"    // (index i32, rate f64) -> handle i32, 0 on failure
	ExportConnectPort   = "lv2_connect_port"   // (handle i32, port i32, ptr i32)
	ExportActivate      = "lv2_activate"       // (handle i32), optional
	ExportRun           = "lv2_run"            // (handle i32, frames i32)
	ExportDeactivate    = "lv2_deactivate"     // (handle i32), optional
	ExportCleanup       = "lv2_cleanup"        // (handle i32)
)

// Host imports.
const (
	ImportURIDMap = "urid_map" // (ptr i32, len i32) -> id i32
	ImportLog     = "log"      // (level i32, ptr i32, len i32)
)

// PtrHighBits is the shift of the pointer within a packed value.
const PtrHighBits = 32

// PackPtrLen packs a pointer and length into a single uint64.
// Pointer is stored in the high 32 bits, length in the low 32 bits.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << PtrHighBits) | uint64(length)
}

// UnpackPtrLen unpacks a uint64 into its pointer and length. It reports
// false for a null pointer with a non-zero length.
func UnpackPtrLen(packed uint64) (ptr, length uint32, ok bool) {
	ptr = uint32(packed >> PtrHighBits) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)             //nolint:gosec // G115: packed format stores 32-bit values
	if ptr == 0 && length > 0 {
		return 0, 0, false
	}
	return ptr, length, true
}
