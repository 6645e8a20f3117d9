// Package errors provides domain-specific error types for the host.
// All error types support error unwrapping via errors.As() and errors.Is().
//
// Only construction and loading failures are errors. Queries that find
// nothing report absence through a boolean instead.
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/lv2host/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

var (
	// ErrWorldClosed is returned by operations on a world whose creator
	// reference has been released.
	ErrWorldClosed = stdErrors.New("world is closed")

	// ErrPluginNotFound is returned when no loaded plugin has the requested URI.
	ErrPluginNotFound = stdErrors.New("plugin not found")

	// ErrNotResource is returned when a node that must name a resource is a literal.
	ErrNotResource = stdErrors.New("node is not a resource")

	// ErrDescriptorNotFound is returned when a unit library has no descriptor
	// for the plugin URI.
	ErrDescriptorNotFound = stdErrors.New("descriptor not found in library")

	// ErrPluginUnloaded is returned when the plugin's bundle has been unloaded.
	ErrPluginUnloaded = stdErrors.New("plugin has been unloaded")

	// ErrLibraryNotFound is returned when a unit binary is neither a
	// WebAssembly module nor registered as an in-process library.
	ErrLibraryNotFound = stdErrors.New("no library registered for binary")
)

// DetailedError is an interface for custom error types that can convert themselves
// to a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to our structured ErrorDetail.
// This function recognizes custom error types and categorizes them appropriately.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	notFound := stdErrors.Is(err, ErrPluginNotFound) ||
		stdErrors.Is(err, ErrDescriptorNotFound) ||
		stdErrors.Is(err, ErrLibraryNotFound)
	return &entities.ErrorDetail{
		Message:    err.Error(),
		Type:       "internal",
		IsNotFound: notFound,
	}
}

// ParseError represents a metadata document that could not be read or parsed.
type ParseError struct {
	Err  error
	File string
	Line int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse %s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ParseError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "parse", Code: e.File}
}

// BundleError represents a bundle that could not be loaded or unloaded.
type BundleError struct {
	Err    error
	Bundle string
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle %s: %v", e.Bundle, e.Err)
}

func (e *BundleError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *BundleError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "bundle", Code: e.Bundle}
}

// LibraryError represents a unit binary that could not be opened.
type LibraryError struct {
	Err  error
	Path string
}

func (e *LibraryError) Error() string {
	return fmt.Sprintf("failed to open library %s: %v", e.Path, e.Err)
}

func (e *LibraryError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *LibraryError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "library",
		Code:       e.Path,
		IsNotFound: stdErrors.Is(e.Err, ErrLibraryNotFound),
	}
}

// InstantiateError represents a unit whose construction routine failed.
type InstantiateError struct {
	Err    error
	Plugin string
}

func (e *InstantiateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to instantiate %s", e.Plugin)
	}
	return fmt.Sprintf("failed to instantiate %s: %v", e.Plugin, e.Err)
}

func (e *InstantiateError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *InstantiateError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message:    e.Error(),
		Type:       "instantiate",
		Code:       e.Plugin,
		IsNotFound: stdErrors.Is(e.Err, ErrDescriptorNotFound) || stdErrors.Is(e.Err, ErrLibraryNotFound),
	}
}

// MissingFeaturesError is returned when a plugin requires features the host
// did not supply.
type MissingFeaturesError struct {
	Plugin  string
	Missing []string
}

func (e *MissingFeaturesError) Error() string {
	return fmt.Sprintf("plugin %s requires unsupported features: %s",
		e.Plugin, strings.Join(e.Missing, ", "))
}

// ToErrorDetail implements DetailedError.
func (e *MissingFeaturesError) ToErrorDetail() *entities.ErrorDetail {
	missing := make([]any, len(e.Missing))
	for i, m := range e.Missing {
		missing[i] = m
	}
	return (&entities.ErrorDetail{Message: e.Error(), Type: "feature", Code: e.Plugin}).
		WithDetails(map[string]any{"missing": missing})
}
