// Package web embeds the dashboard's static assets (stylesheet and the
// live-refresh script) so the Go binary serves them without a build step.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/dtfscope/web"
//	fs := web.StaticFS() // io/fs.FS rooted at static/
package web

import (
	"embed"
	"io/fs"

	"github.com/zeromicro/go-zero/core/logx"
)

//go:embed static
var assets embed.FS

// StaticFS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func StaticFS() fs.FS {
	sub, err := fs.Sub(assets, "static")
	logx.Must(err)
	return sub
}

// StyleCSS returns the page stylesheet, for documents that inline it.
func StyleCSS() string {
	data, err := fs.ReadFile(assets, "static/style.css")
	logx.Must(err)
	return string(data)
}
