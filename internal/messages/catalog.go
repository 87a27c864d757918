// Package messages renders user-facing, localized messages from a small
// built-in catalog. Entries are text/template sources with the sprig
// function map available.
package messages

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultLocale is used when a key is missing in the requested locale.
const DefaultLocale = "en"

// Args is the data passed to a message template.
type Args map[string]interface{}

// Catalog renders messages for one locale.
type Catalog struct {
	locale string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// New returns a catalog for locale. Unknown locales fall back to English.
func New(locale string) *Catalog {
	if _, ok := catalog[locale]; !ok {
		locale = DefaultLocale
	}
	return &Catalog{locale: locale, cache: make(map[string]*template.Template)}
}

// Locale returns the catalog's effective locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Locales lists every locale with at least one entry.
func Locales() []string {
	locales := make([]string, 0, len(catalog))
	for l := range catalog {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Has reports whether key exists in the default locale.
func Has(key string) bool {
	_, ok := catalog[DefaultLocale][key]
	return ok
}

// N renders key with args. An unknown key renders as the key itself so a
// missing translation never hides the underlying event.
func (c *Catalog) N(key string, args Args) string {
	tmpl, err := c.lookup(key)
	if err != nil {
		return key
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, args); err != nil {
		return fmt.Sprintf("%s (%v)", key, err)
	}
	return buf.String()
}

// In renders key in another locale.
func In(locale, key string, args Args) string {
	return New(locale).N(key, args)
}

func (c *Catalog) lookup(key string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tmpl, ok := c.cache[key]; ok {
		return tmpl, nil
	}
	src, ok := catalog[c.locale][key]
	if !ok {
		src, ok = catalog[DefaultLocale][key]
	}
	if !ok {
		return nil, fmt.Errorf("unknown message key %q", key)
	}
	tmpl, err := template.New(key).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, err
	}
	c.cache[key] = tmpl
	return tmpl, nil
}
