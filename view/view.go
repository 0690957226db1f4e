package view

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/diewo77/invoice-dashboard/i18n"
	"github.com/shopspring/decimal"
)

//go:embed templates
var templatesFS embed.FS

var tplCache = struct {
	sync.RWMutex
	m map[string]*template.Template
}{m: map[string]*template.Template{}}

// Funcs returns the standard func map including i18n and simple helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := "fr"
	if r != nil {
		lang = i18n.LangFromContext(r.Context())
	}
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"money": FormatCents,
		"units": UnitsFromCents,
		"add":   func(a, b int) int { return a + b },
		"sub":   func(a, b int) int { return a - b },
		"year":  func() int { return time.Now().Year() },
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

// FormatCents renders an amount in cents as a currency string, e.g. $45.50.
func FormatCents(cents int64) string {
	return "$" + UnitsFromCents(cents)
}

// UnitsFromCents renders an amount in cents as units with two decimals.
func UnitsFromCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// load parses layout, partials and the page once. Executions work on clones
// so each request can bind its own funcs.
func load(name string) (*template.Template, error) {
	tplCache.RLock()
	t, ok := tplCache.m[name]
	tplCache.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("layout.html").Funcs(Funcs(nil)).ParseFS(templatesFS,
		"templates/layout.html",
		"templates/partials/*.html",
		"templates/"+name,
	)
	if err != nil {
		return nil, err
	}

	tplCache.Lock()
	tplCache.m[name] = t
	tplCache.Unlock()
	return t, nil
}

// RenderBytes executes the named page inside the layout and returns the HTML.
func RenderBytes(r *http.Request, name string, data map[string]any) ([]byte, error) {
	base, err := load(name)
	if err != nil {
		return nil, err
	}
	t, err := base.Clone()
	if err != nil {
		return nil, err
	}
	t.Funcs(Funcs(r))

	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderStatus writes the named page with the given status. Nothing is
// written if the template fails.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	body, err := RenderBytes(r, name, data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// ResetForTests clears the template cache.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
}
