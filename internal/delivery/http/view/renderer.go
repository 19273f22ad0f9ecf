// Package view renders the HTML pages with html/template. Every value is
// contextually escaped by the template engine; free text echoed from the
// query string is additionally stripped of markup.
package view

import (
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"io/fs"
	"os"

	"beershop/domain/entity"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var embedded embed.FS

const maxMessageLen = 200

// Renderer implements echo.Renderer over a fixed set of pages.
type Renderer struct {
	pages  map[string]*template.Template
	policy *bluemonday.Policy
}

// Pages served by the renderer.
const (
	PageLogin    = "user.html"
	PageRegister = "user-register.html"
	PageProfile  = "profile.html"
	PageBeer     = "beer.html"
)

// FormPage is the login or registration page.
type FormPage struct {
	Message string
}

type ProfilePage struct {
	User  entity.User
	Beers []entity.Beer
}

type BeerPage struct {
	Beer      entity.Beer
	Loves     bool
	Message   string
	CSRFToken string
}

// NewRenderer parses the templates from dir, or the embedded copies when
// dir is empty.
func NewRenderer(dir string) (*Renderer, error) {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	r := &Renderer{
		pages:  make(map[string]*template.Template),
		policy: bluemonday.StrictPolicy(),
	}
	for _, page := range []string{PageLogin, PageRegister, PageProfile, PageBeer} {
		t, err := template.New("layout.html").ParseFS(fsys, "layout.html", page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", data)
}

// Message returns user-supplied text safe to show on a page, or fallback
// when nothing usable remains.
func (r *Renderer) Message(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	// the template escapes on output, so undo the sanitizer's entity encoding
	clean := html.UnescapeString(r.policy.Sanitize(raw))
	if len([]rune(clean)) > maxMessageLen {
		clean = string([]rune(clean)[:maxMessageLen])
	}
	if clean == "" {
		return fallback
	}
	return clean
}
