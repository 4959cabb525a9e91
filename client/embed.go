// Package client ships the browser script that binds server-rendered apply
// forms to their live session.
package client

import (
	"embed"
	"io/fs"
	"net/http"
)

// ScriptName is the file the router serves under its client path.
const ScriptName = "applykit.js"

//go:embed src/*.js
var src embed.FS

var assets = mustSub(src, "src")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Assets exposes the embedded scripts.
func Assets() fs.FS { return assets }

// Handler serves the scripts. Responses are revalidated so a deploy takes
// effect on the next page load.
func Handler() http.Handler {
	files := http.FileServerFS(assets)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}
