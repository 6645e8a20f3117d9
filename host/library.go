package host

import (
	"context"
	"path/filepath"
	"strings"

	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/reglet-dev/lv2host/domain/ports"
)

// WasmExt is the extension of unit binaries opened by the library loader.
const WasmExt = ".wasm"

// libraryFor returns the unit library for a binary path. WebAssembly
// binaries are opened once per World and closed when it is released; other
// binaries must be registered as in-process libraries, by path or file name.
func (w *World) libraryFor(ctx context.Context, path string) (ports.UnitLibrary, error) {
	if strings.EqualFold(filepath.Ext(path), WasmExt) && w.config.loader != nil {
		w.libMu.Lock()
		defer w.libMu.Unlock()
		if lib, ok := w.libraries[path]; ok {
			return lib, nil
		}
		lib, err := w.config.loader.Load(ctx, path)
		if err != nil {
			return nil, &domainerrors.LibraryError{Path: path, Err: err}
		}
		w.libraries[path] = lib
		w.logger.Debug("opened unit library", "path", path)
		return lib, nil
	}

	if w.config.libraries != nil {
		if lib, ok := w.config.libraries.Lookup(path); ok {
			return lib, nil
		}
		if lib, ok := w.config.libraries.Lookup(filepath.Base(path)); ok {
			return lib, nil
		}
	}
	return nil, &domainerrors.LibraryError{Path: path, Err: domainerrors.ErrLibraryNotFound}
}

// findDescriptor walks the descriptor table of lib for uri.
func findDescriptor(lib ports.UnitLibrary, uri string) (ports.UnitDescriptor, bool) {
	for i := uint32(0); ; i++ {
		desc, ok := lib.Descriptor(i)
		if !ok {
			return nil, false
		}
		if desc.URI() == uri {
			return desc, true
		}
	}
}
