package handler

import (
	"bytes"
	"context"
	_ "embed"
	"html"
	"io"
	"net/http"
	"sync"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed index.md
var indexMarkdown []byte

var (
	indexOnce sync.Once
	indexHTML string
)

// renderIndex converts the embedded usage notes to HTML once.
func renderIndex() string {
	indexOnce.Do(func() {
		md := goldmark.New(goldmark.WithExtensions(extension.Table))
		var buf bytes.Buffer
		if err := md.Convert(indexMarkdown, &buf); err != nil {
			// Fall back to raw markdown on render error.
			buf.Reset()
			buf.WriteString("<pre>" + html.EscapeString(string(indexMarkdown)) + "</pre>")
		}
		indexHTML = buf.String()
	})
	return indexHTML
}

// page wraps pre-rendered HTML in a minimal document.
func page(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+
			`</title></head><body>`+body+`</body></html>`)
		return err
	})
}

// Index renders the usage page. It needs no authentication.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	templ.Handler(page("guestlog", renderIndex())).ServeHTTP(w, r)
}
