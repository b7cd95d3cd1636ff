// Package i18n holds the translated API messages and picks a language for a
// request from its Accept-Language header.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v2"
)

//go:embed locales/*.yaml
var localesFS embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog is a set of translated messages for the supported languages.
type Catalog struct {
	builder   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
	keys      map[language.Tag]map[string]bool
}

var defaultCatalog = mustLoad(localesFS)

// Default returns the catalog built from the embedded locale files.
func Default() *Catalog {
	return defaultCatalog
}

func mustLoad(fsys fs.FS) *Catalog {
	c, err := Load(fsys)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads locales/*.yaml from fsys. English must be present and is the
// fallback language.
func Load(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	sort.Strings(paths)

	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(language.English)),
		keys:    make(map[language.Tag]map[string]bool),
	}
	// English first so the matcher falls back to it.
	c.supported = append(c.supported, language.English)

	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(file.Locale))
		if err != nil {
			return nil, fmt.Errorf("%s: locale %q: %w", path, file.Locale, err)
		}
		if len(file.Messages) == 0 {
			return nil, fmt.Errorf("%s: no messages", path)
		}

		keys := make(map[string]bool, len(file.Messages))
		for key, value := range file.Messages {
			if err := c.builder.SetString(tag, key, value); err != nil {
				return nil, fmt.Errorf("%s: key %q: %w", path, key, err)
			}
			keys[key] = true
		}
		c.keys[tag] = keys
		if tag != language.English {
			c.supported = append(c.supported, tag)
		}
	}

	if _, ok := c.keys[language.English]; !ok {
		return nil, fmt.Errorf("locale en is not defined")
	}
	c.matcher = language.NewMatcher(c.supported)
	return c, nil
}

// Supported lists the languages with a locale file, English first.
func (c *Catalog) Supported() []language.Tag {
	return append([]language.Tag(nil), c.supported...)
}

// Match picks the best supported language for an Accept-Language header.
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return c.supported[index]
}

// Translate returns the message for key in tag, falling back to English and
// then to fallback when no locale defines key.
func (c *Catalog) Translate(tag language.Tag, key, fallback string, args ...interface{}) string {
	if key == "" {
		return formatFallback(fallback, args)
	}
	if !c.keys[tag][key] {
		if !c.keys[language.English][key] {
			return formatFallback(fallback, args)
		}
		tag = language.English
	}
	p := message.NewPrinter(tag, message.Catalog(c.builder))
	return p.Sprintf(key, args...)
}

func formatFallback(fallback string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(fallback, args...)
	}
	return fallback
}

// Match uses the default catalog.
func Match(acceptLanguage string) language.Tag {
	return defaultCatalog.Match(acceptLanguage)
}

// Translate uses the default catalog.
func Translate(tag language.Tag, key, fallback string, args ...interface{}) string {
	return defaultCatalog.Translate(tag, key, fallback, args...)
}
