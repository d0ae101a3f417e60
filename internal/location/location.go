// Package location resolves references made by configuration documents.
//
// Every relative reference is resolved against the document that made it,
// never against the process working directory. A reference is either a local
// path or an http(s) URL.
package location

import (
	"context"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

// IsURL reports whether ref is an http or https URL.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Expand replaces a leading ~ with the user's home directory.
func Expand(p string) string {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return p
	}
	return expanded
}

// Resolve makes ref absolute relative to base, the path or URL of the document
// that references it.
func Resolve(ref, base string) string {
	ref = Expand(ref)
	if IsURL(ref) {
		return ref
	}
	if IsURL(base) {
		b, err := url.Parse(base)
		if err == nil {
			r, err := url.Parse(filepath.ToSlash(ref))
			if err == nil {
				return b.ResolveReference(r).String()
			}
		}
		return ref
	}
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	dir := filepath.Dir(base)
	if base == "" {
		dir = "."
	}
	abs, err := filepath.Abs(filepath.Join(dir, ref))
	if err != nil {
		return filepath.Join(dir, ref)
	}
	return abs
}

// Dir returns the directory portion of a local path, or "" for URLs.
func Dir(p string) string {
	if p == "" || IsURL(p) {
		return ""
	}
	return filepath.Dir(p)
}

// Stem returns the file name without directory and extension.
func Stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Glob expands an absolute doublestar pattern against fsys and returns sorted
// absolute file paths. Directories are never returned.
func Glob(fsys afero.Fs, pattern string) ([]string, error) {
	pattern = filepath.ToSlash(pattern)
	rooted := afero.NewIOFS(afero.NewBasePathFs(fsys, "/"))
	matches, err := doublestar.Glob(rooted, strings.TrimPrefix(pattern, "/"), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = "/" + m
	}
	sort.Strings(out)
	return out, nil
}

// Fetcher retrieves remote documents.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Reader reads local files from FS and URLs through Fetcher.
type Reader struct {
	FS      afero.Fs
	Fetcher Fetcher
}

// Read returns the content of ref, which must already be resolved.
// Missing documents produce errors matching fs.ErrNotExist.
func (r Reader) Read(ctx context.Context, ref string) ([]byte, error) {
	if IsURL(ref) {
		if r.Fetcher == nil {
			return nil, &url.Error{Op: "fetch", URL: ref, Err: errNoFetcher}
		}
		return r.Fetcher.Fetch(ctx, ref)
	}
	return afero.ReadFile(r.FS, ref)
}

// Exists reports whether a local path exists. URLs always report true.
func (r Reader) Exists(ref string) bool {
	if IsURL(ref) {
		return true
	}
	ok, err := afero.Exists(r.FS, ref)
	return err == nil && ok
}
