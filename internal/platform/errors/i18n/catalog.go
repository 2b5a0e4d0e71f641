// Package i18n provides internationalization support for error messages.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the locale every other catalog falls back to.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	catalogsMu sync.RWMutex
	// catalogs holds embedded and registered catalogs by locale.
	catalogs = mustLoadEmbedded()
)

// GetCatalog returns the catalog that best matches locale. Unknown or
// malformed locales fall back to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}
	if resolved, ok := matchLocale(requested); ok {
		if c, ok := lookupCatalog(resolved); ok {
			return c
		}
	}
	c, _ := lookupCatalog(BaseLocale)
	return c
}

// Locales returns the registered locales in sorted order.
func Locales() []string {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	out := make([]string, 0, len(catalogs))
	for locale := range catalogs {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message template with the given metadata.
// Falls back to the error code itself if no template is found.
// Templates are always executed even with nil/empty metadata to ensure
// consistent output (template variables without metadata render as empty).
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}

// RegisterCatalog registers a catalog for the given locale, replacing any
// existing one.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	return &Catalog{
		locale:   locale,
		messages: cloned,
	}
}

// matchLocale picks the closest registered locale, so "pt" and "pt-PT"
// resolve to pt-BR.
func matchLocale(requested string) (string, bool) {
	tag, err := language.Parse(requested)
	if err != nil {
		return "", false
	}
	available := Locales()
	tags := make([]language.Tag, 0, len(available))
	names := make([]string, 0, len(available))
	for _, locale := range available {
		parsed, err := language.Parse(locale)
		if err != nil {
			continue
		}
		tags = append(tags, parsed)
		names = append(names, locale)
	}
	if len(tags) == 0 {
		return "", false
	}
	_, index, confidence := language.NewMatcher(tags).Match(tag)
	if confidence == language.No {
		return "", false
	}
	return names[index], true
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

// LoadFromFS reads one catalog per locales/<locale>.yaml file.
func LoadFromFS(catalogFS fs.FS) (map[string]*Catalog, error) {
	paths, err := fs.Glob(catalogFS, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale catalogs found")
	}
	out := make(map[string]*Catalog, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(catalogFS, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var messages map[Code]string
		if err := yaml.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		locale := strings.TrimSuffix(path.Base(p), ".yaml")
		if _, err := language.Parse(locale); err != nil {
			return nil, fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		out[locale] = NewCatalog(locale, messages)
	}
	if _, ok := out[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is missing", BaseLocale)
	}
	return out, nil
}

func mustLoadEmbedded() map[string]*Catalog {
	loaded, err := LoadFromFS(localeFS)
	if err != nil {
		panic(fmt.Sprintf("load embedded error catalogs: %v", err))
	}
	return loaded
}
