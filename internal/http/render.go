package http

import (
	"bytes"
	"embed"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"tinywiki/app/internal/wiki"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// Renderer converts stored markdown into sanitized HTML and renders the
// embedded page templates. Sanitization happens here, at output time;
// page content is stored raw.
type Renderer struct {
	templates *template.Template
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
}

// NewRenderer parses the embedded templates and builds the markdown
// pipeline.
func NewRenderer() (*Renderer, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, eris.Wrap(err, "parsing templates")
	}

	markdown := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
	)

	return &Renderer{
		templates: templates,
		markdown:  markdown,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

// RenderMarkdown converts raw markdown into sanitized HTML.
func (r *Renderer) RenderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(content), &buf); err != nil {
		return "", eris.Wrap(err, "converting markdown")
	}

	return template.HTML(r.sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// Render executes the named template into w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	if err := r.templates.ExecuteTemplate(w, name, data); err != nil {
		return eris.Wrapf(err, "rendering template: %s", name)
	}
	return nil
}

// pageViewData feeds the read-only page template.
type pageViewData struct {
	Title        string
	LoggedIn     bool
	Page         *wiki.Page
	Content      template.HTML
	LastModified string
	AllPages     []wiki.Page
	CSRFField    template.HTML
}

// editorData feeds the page editor template.
type editorData struct {
	Title     string
	LoggedIn  bool
	PageName  string
	PageID    *uint
	Content   string
	Errors    []string
	CanDelete bool
	Page      *wiki.Page
	AllPages  []wiki.Page
	CSRFField template.HTML
}

// authData feeds the login and register templates.
type authData struct {
	Title     string
	IsLogin   bool
	Username  string
	Errors    []string
	CSRFField template.HTML
}

// errorData feeds the standalone error template.
type errorData struct {
	Title     string
	LoggedIn  bool
	Message   string
	CSRFField template.HTML
}
