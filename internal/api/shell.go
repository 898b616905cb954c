package api

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/injops/dashboard/internal/pages"
)

//go:embed web
var webFS embed.FS

type shell struct {
	tmpl   *template.Template
	static http.Handler
}

type shellData struct {
	AppName         string
	Network         string
	Pages           []PageInfo
	LookbackOptions []int
	DefaultLookback int
}

func newShell() (*shell, error) {
	tmpl, err := template.ParseFS(webFS, "web/index.html.tmpl")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, err
	}
	return &shell{
		tmpl:   tmpl,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(static))),
	}, nil
}

// Shell serves the dashboard page: a sidebar with the page selector and
// controls, and a content area filled from the page endpoints.
func (h *Handler) Shell(w http.ResponseWriter, r *http.Request) {
	data := shellData{
		AppName:         h.appName,
		Network:         h.network,
		Pages:           pageInfos(h.pages),
		LookbackOptions: pages.LookbackOptions,
		DefaultLookback: pages.DefaultLookback,
	}

	var buf bytes.Buffer
	if err := h.shell.tmpl.Execute(&buf, data); err != nil {
		h.logger.Errorw("Failed to render dashboard shell", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	h.shell.static.ServeHTTP(w, r)
}
