package panel

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web/*
var content embed.FS

// assets picks the asset tree: dir when it is an existing directory (so
// the page can be edited on a running node), the embedded copy otherwise.
func assets(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	web, err := fs.Sub(content, "web")
	if err != nil {
		panic("panel: embedded web assets missing: " + err.Error())
	}
	return web
}

// Handler serves the status page. Extension-less paths that match no file
// get index.html; a missing asset (anything with an extension) is a 404.
func Handler(dir string) http.Handler {
	fsys := assets(dir)
	files := http.FileServerFS(fsys)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			files.ServeHTTP(w, r)
			return
		}

		if _, err := fs.Stat(fsys, name); err != nil {
			if path.Ext(name) != "" {
				http.NotFound(w, r)
				return
			}
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			files.ServeHTTP(w, r2)
			return
		}

		files.ServeHTTP(w, r)
	})
}
