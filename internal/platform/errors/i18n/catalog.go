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

// BaseLocale is the fallback locale every catalog set must define.
const BaseLocale = "en-US"

// Code is a machine-readable error code (duplicated from errors package to avoid cycle).
type Code = string

// Catalog maps error codes to message templates for a specific locale.
type Catalog struct {
	locale   string
	messages map[Code]string
}

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

//go:embed locales/*/errors.yaml
var embeddedFS embed.FS

var (
	catalogsMu sync.RWMutex
	// catalogs holds override and embedded catalogs by locale.
	catalogs = map[string]*Catalog{}
	matcher  language.Matcher
	// supported lists matcher tags in the order given to the matcher.
	supported []string
)

func init() {
	loaded, err := LoadFromFS(embeddedFS)
	if err != nil {
		panic(err)
	}
	for _, cat := range loaded {
		catalogs[cat.locale] = cat
	}
	rebuildMatcher()
}

// LoadFromFS parses every locales/<locale>/errors.yaml file in fsys.
func LoadFromFS(fsys fs.FS) ([]*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*/errors.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob error catalogs: %w", err)
	}
	sort.Strings(paths)

	out := make([]*Catalog, 0, len(paths))
	haveBase := false
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		locale := strings.TrimSpace(file.Locale)
		if dir := path.Base(path.Dir(p)); locale != dir {
			return nil, fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, dir)
		}
		if _, err := language.Parse(locale); err != nil {
			return nil, fmt.Errorf("catalog %s: parse locale: %w", p, err)
		}
		if len(file.Messages) == 0 {
			return nil, fmt.Errorf("catalog %s: messages are required", p)
		}
		haveBase = haveBase || locale == BaseLocale
		out = append(out, NewCatalog(locale, file.Messages))
	}
	if !haveBase {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	return out, nil
}

// GetCatalog returns the catalog for the given locale.
// Falls back to the closest supported locale, then to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}
	if c, ok := lookupCatalog(Negotiate(requested)); ok {
		return c
	}
	c, _ := lookupCatalog(BaseLocale)
	return c
}

// Negotiate picks the supported locale that best matches an
// Accept-Language style preference list.
func Negotiate(preference string) string {
	tags, _, err := language.ParseAcceptLanguage(preference)
	if err != nil || len(tags) == 0 {
		return BaseLocale
	}
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No || idx >= len(supported) {
		return BaseLocale
	}
	return supported[idx]
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

// RegisterCatalog registers a new catalog for the given locale.
// Callers should do this during init or single-threaded test setup.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	catalogs[locale] = cat
	catalogsMu.Unlock()
	rebuildMatcher()
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

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

// rebuildMatcher refreshes the matcher from the registered locales, base
// locale first so it wins ties.
func rebuildMatcher() {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	locales := []string{BaseLocale}
	tags := []language.Tag{language.MustParse(BaseLocale)}
	keys := make([]string, 0, len(catalogs))
	for locale := range catalogs {
		keys = append(keys, locale)
	}
	sort.Strings(keys)
	for _, locale := range keys {
		if locale == BaseLocale {
			continue
		}
		tag, err := language.Parse(locale)
		if err != nil {
			continue
		}
		locales = append(locales, locale)
		tags = append(tags, tag)
	}
	supported = locales
	matcher = language.NewMatcher(tags)
}
