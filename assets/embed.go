// assets/embed.go
//
// Browser client bundled into the binary: the page, its script and
// stylesheet, and the mole images. Served by internal/httpserver.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed web
var files embed.FS

// Web returns the client files rooted at the web directory
// (index.html, app.js, style.css, images/...).
func Web() fs.FS {
	sub, err := fs.Sub(files, "web")
	if err != nil {
		// "web" is embedded above; Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}

// Index returns the contents of index.html.
func Index() ([]byte, error) {
	return fs.ReadFile(files, "web/index.html")
}
