// Package web embeds the browser client served at the site root.
package web

import (
	"embed"
	"io/fs"
)

//go:embed public
var files embed.FS

// Public returns the client assets rooted at the public directory.
func Public() fs.FS {
	sub, err := fs.Sub(files, "public")
	if err != nil {
		panic(err) // the directory is embedded at build time
	}
	return sub
}
