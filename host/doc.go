// Package host provides the runtime for discovering, describing and driving
// LV2 units distributed as bundles.
//
// A World holds the metadata of every loaded bundle behind a single lock.
// Nodes, collections, plugins and ports obtained from it are handles that
// route every metadata access through that lock. Instances bracket the
// processing path: only an ActiveInstance can Run, and Run takes no lock.
//
// Units are reached through the ports.UnitLibrary ABI, either implemented in
// Go and registered with the registry package, or compiled to WebAssembly and
// loaded by the wazero loader.
package host
