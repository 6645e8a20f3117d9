// Package entities provides the core value types shared by the registry, its
// stores and its loaders.
// These types carry no behaviour beyond construction and canonicalisation;
// the host package wraps them in registry-scoped handles.
package entities
