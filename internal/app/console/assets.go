package console

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed static
var staticAssets embed.FS

const staticPrefix = "/static/"

// StaticHandler serves the embedded dashboard assets mounted at /static/.
// Directory paths are not listed.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic(err)
	}
	files := http.StripPrefix(staticPrefix, http.FileServerFS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
