package ports

// LibraryRegistry holds unit libraries implemented in-process, keyed by the
// binary path or file name a bundle names in lv2:binary.
type LibraryRegistry interface {
	// Register adds a library under name.
	Register(name string, lib UnitLibrary) error

	// Lookup retrieves the library registered under name.
	Lookup(name string) (UnitLibrary, bool)

	// List returns all registered library names.
	List() []string
}
