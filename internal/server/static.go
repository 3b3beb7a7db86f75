package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// staticHandler serves the web client. Paths that do not name a file (or a
// directory with an index.html) fall through to the JSON 404.
func (s *Server) staticHandler() http.HandlerFunc {
	fsys := s.cfg.Public
	if fsys == nil {
		return handleNotFound
	}
	files := http.FileServer(http.FS(fsys))

	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "."
		}

		info, err := fs.Stat(fsys, name)
		if err != nil {
			handleNotFound(w, r)
			return
		}
		if info.IsDir() {
			if _, err := fs.Stat(fsys, path.Join(name, "index.html")); err != nil {
				handleNotFound(w, r)
				return
			}
		}

		files.ServeHTTP(w, r)
	}
}
