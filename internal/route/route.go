// Package route maps a request path to the logical route used for dispatch.
//
// Every request is classified before anything else happens. The result names
// the top-level area ("public", "app", "login", ...) that the access gate
// checks, the file inside that area, and the on-disk location of that file.
//
// Classification is a pure function: no I/O and no failure states.
package route

import (
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultRoute is the area used when the path does not name one.
	DefaultRoute = "public"
	// DefaultFile is the file served for a directory request.
	DefaultFile = "index.html"
)

// Descriptor is the classification of one request path.
type Descriptor struct {
	Route string // first path segment, or DefaultRoute
	File  string // remaining segments joined by "/", or DefaultFile
	URL   string // Route + "/" + File
	Path  string // URL resolved under the content root
}

// Command returns the dispatch key for this descriptor, e.g. "POST login/index.html".
func (d Descriptor) Command(method string) string {
	return method + " " + d.URL
}

// Classifier resolves descriptors against a content root directory.
type Classifier struct {
	root string
}

// NewClassifier returns a Classifier whose Path values live under root.
func NewClassifier(root string) *Classifier {
	return &Classifier{root: root}
}

// Classify applies the routing rules to urlPath:
//
//	""                   → public/index.html
//	"style.css"          → public/style.css   (one segment with a dot)
//	"app"                → app/index.html     (one segment without a dot)
//	"app/gallery/x.png"  → app + gallery/x.png
//
// Empty segments ("//") are ignored. Dot segments are collapsed before the
// route is picked, so Route always names the directory Path lives in.
func (c *Classifier) Classify(urlPath string) Descriptor {
	segments := splitSegments(path.Clean("/" + urlPath))

	var r, f string
	switch {
	case len(segments) == 0:
		r, f = DefaultRoute, DefaultFile
	case len(segments) == 1 && strings.Contains(segments[0], "."):
		r, f = DefaultRoute, segments[0]
	case len(segments) == 1:
		r, f = segments[0], DefaultFile
	default:
		r, f = segments[0], strings.Join(segments[1:], "/")
	}

	url := r + "/" + f
	return Descriptor{
		Route: r,
		File:  f,
		URL:   url,
		Path:  c.resolve(url),
	}
}

// Classify classifies urlPath against the current directory, the same
// layout the server uses when no content root is configured.
func Classify(urlPath string) Descriptor {
	return NewClassifier(".").Classify(urlPath)
}

// resolve joins url under the root. Cleaning it as an absolute path first
// collapses any ".." so the result cannot leave the root.
func (c *Classifier) resolve(url string) string {
	cleaned := path.Clean("/" + url)
	return filepath.Join(c.root, filepath.FromSlash(cleaned))
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	segments := parts[:0]
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
