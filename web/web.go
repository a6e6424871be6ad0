// Package web embeds the server-rendered templates.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templates embed.FS

// Engine returns an html/template engine over the embedded templates.
// Template names are paths relative to templates/ without the extension,
// e.g. "home" or "layouts/main".
func Engine() *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}
