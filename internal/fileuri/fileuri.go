// Package fileuri converts between file paths and file URIs.
package fileuri

import (
	"net/url"
	"path/filepath"
	"strings"
)

// New returns the file URI for path on hostname, which may be empty.
// Relative paths are made absolute first.
func New(hostname, path string) string {
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	u := url.URL{Scheme: "file", Host: hostname, Path: filepath.ToSlash(path)}
	if u.Host == "" {
		// url.URL drops the empty authority for file URIs.
		return "file://" + u.EscapedPath()
	}
	return u.String()
}

// NewDir is New for a directory; the result always ends with a slash so
// that relative references resolve inside it.
func NewDir(path string) string {
	uri := New("", path)
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri
}

// Parse returns the path and hostname of a file URI. It reports false for
// any other scheme.
func Parse(uri string) (path, hostname string, ok bool) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return "", "", false
	}
	if u.Opaque != "" {
		// file:relative/path
		p, err := url.PathUnescape(u.Opaque)
		if err != nil {
			return "", "", false
		}
		return filepath.FromSlash(p), "", true
	}
	return filepath.FromSlash(u.Path), u.Host, true
}
