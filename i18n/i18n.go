package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// LanguagePrompt is shown above the language picker in every locale.
const LanguagePrompt = "Select your language | Seleccione su idioma | Selecione seu idioma"

// DefaultLanguage is used when nothing else matches.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var embedded embed.FS

// Locale is one language's UI strings.
type Locale struct {
	Code    string            `yaml:"code"`
	Name    string            `yaml:"name"`
	Strings map[string]string `yaml:"strings"`

	fallback *Locale
}

// T returns the string for key, falling back to the default language and
// finally to the key itself.
func (l *Locale) T(key string) string {
	if l == nil {
		return key
	}
	if s, ok := l.Strings[key]; ok && s != "" {
		return s
	}
	if l.fallback != nil && l.fallback != l {
		return l.fallback.T(key)
	}
	return key
}

// Catalog holds every loaded locale.
type Catalog struct {
	locales map[string]*Locale
	order   []string
	matcher language.Matcher
}

// Load reads the embedded locales, then any *.yaml in dir. Files in dir
// replace embedded locales with the same code. An empty dir loads only the
// embedded set.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{locales: make(map[string]*Locale)}

	if err := c.loadFS(embedded, "locales"); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := c.loadFS(os.DirFS(dir), "."); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	def, ok := c.locales[DefaultLanguage]
	if !ok {
		return nil, fmt.Errorf("default locale %q not found", DefaultLanguage)
	}

	// default language first so the matcher falls back to it
	c.order = c.order[:0]
	c.order = append(c.order, DefaultLanguage)
	var rest []string
	for code := range c.locales {
		if code != DefaultLanguage {
			rest = append(rest, code)
		}
	}
	sort.Strings(rest)
	c.order = append(c.order, rest...)

	tags := make([]language.Tag, 0, len(c.order))
	for _, code := range c.order {
		c.locales[code].fallback = def
		tags = append(tags, language.Make(code))
	}
	c.matcher = language.NewMatcher(tags)

	return c, nil
}

func (c *Catalog) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return err
		}

		var loc Locale
		if err := yaml.Unmarshal(data, &loc); err != nil {
			return fmt.Errorf("parse locale %s: %w", entry.Name(), err)
		}
		if loc.Code == "" {
			loc.Code = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		c.locales[loc.Code] = &loc
	}

	return nil
}

// Lookup returns the locale for an exact code.
func (c *Catalog) Lookup(code string) (*Locale, bool) {
	l, ok := c.locales[code]
	return l, ok
}

// Default returns the fallback locale.
func (c *Catalog) Default() *Locale {
	return c.locales[DefaultLanguage]
}

// Languages lists the loaded locales, default first.
func (c *Catalog) Languages() []*Locale {
	out := make([]*Locale, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.locales[code])
	}
	return out
}

// Match picks the best locale for an Accept-Language header.
func (c *Catalog) Match(acceptLanguage string) *Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.Default()
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(c.order) {
		return c.Default()
	}
	return c.locales[c.order[idx]]
}

// Pick resolves the page language: an explicit choice wins, then the
// session's stored language, then the browser's Accept-Language.
func (c *Catalog) Pick(explicit, stored, acceptLanguage string) *Locale {
	if l, ok := c.Lookup(explicit); ok {
		return l
	}
	if l, ok := c.Lookup(stored); ok {
		return l
	}
	return c.Match(acceptLanguage)
}
