package route

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := NewClassifier("/srv/www")

	tests := []struct {
		name      string
		path      string
		wantRoute string
		wantFile  string
		wantURL   string
		wantPath  string
	}{
		{"empty path", "", "public", "index.html", "public/index.html", "/srv/www/public/index.html"},
		{"root slash", "/", "public", "index.html", "public/index.html", "/srv/www/public/index.html"},
		{"directory request", "/app", "app", "index.html", "app/index.html", "/srv/www/app/index.html"},
		{"directory with trailing slash", "/app/", "app", "index.html", "app/index.html", "/srv/www/app/index.html"},
		{"asset at top level", "/style.css", "public", "style.css", "public/style.css", "/srv/www/public/style.css"},
		{"nested file", "/app/gallery/img.png", "app", "gallery/img.png", "app/gallery/img.png", "/srv/www/app/gallery/img.png"},
		{"two segments", "/app/credits.html", "app", "credits.html", "app/credits.html", "/srv/www/app/credits.html"},
		{"doubled slashes", "//app//credits.html", "app", "credits.html", "app/credits.html", "/srv/www/app/credits.html"},
		{"api command", "/login", "login", "index.html", "login/index.html", "/srv/www/login/index.html"},
		{"without leading slash", "app/gallery/img.png", "app", "gallery/img.png", "app/gallery/img.png", "/srv/www/app/gallery/img.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.path)
			assert.Equal(t, tt.wantRoute, d.Route)
			assert.Equal(t, tt.wantFile, d.File)
			assert.Equal(t, tt.wantURL, d.URL)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), d.Path)
		})
	}
}

func TestClassify_DotSegments(t *testing.T) {
	c := NewClassifier("/srv/www")

	tests := []struct {
		name      string
		path      string
		wantRoute string
		wantFile  string
		wantPath  string
	}{
		{"escape above root", "/app/../../etc/passwd", "etc", "passwd", "/srv/www/etc/passwd"},
		{"public into app", "/public/../app/index.html", "app", "index.html", "/srv/www/app/index.html"},
		{"unknown area into app", "/x/../app/error.html", "app", "error.html", "/srv/www/app/error.html"},
		{"app out and back", "/app/.././app/index.html", "app", "index.html", "/srv/www/app/index.html"},
		{"app out to public", "/app/../style.css", "public", "style.css", "/srv/www/public/style.css"},
		{"only dots", "/../..", "public", "index.html", "/srv/www/public/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.path)
			assert.Equal(t, tt.wantRoute, d.Route)
			assert.Equal(t, tt.wantFile, d.File)
			assert.Equal(t, tt.wantRoute+"/"+tt.wantFile, d.URL)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), d.Path)
		})
	}
}

func TestDescriptorCommand(t *testing.T) {
	assert.Equal(t, "POST login/index.html", Classify("/login").Command("POST"))
	assert.Equal(t, "GET public/index.html", Classify("").Command("GET"))
	assert.Equal(t, "POST data/index.html", Classify("/data").Command("POST"))
}

func TestClassify_DefaultRoot(t *testing.T) {
	d := Classify("/app/nocredits.html")
	assert.Equal(t, filepath.Join("app", "nocredits.html"), d.Path)
}
