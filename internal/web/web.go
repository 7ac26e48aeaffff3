// ABOUTME: Embedded browser listener page served from the broadcast server
// ABOUTME: Static assets only; the page connects back over the websocket endpoint
package web

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexHTML []byte

//go:embed app.js
var appJS []byte

//go:embed style.css
var styleCSS []byte

// Handler serves the embedded listener page. Unknown paths fall through to
// the index so the page keeps working behind simple reverse proxies.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/index.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(indexHTML)
		case "/app.js":
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Write(appJS)
		case "/style.css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
			w.Write(styleCSS)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(indexHTML)
		}
	})
}
