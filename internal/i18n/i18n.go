// Package i18n serves translated messages, button labels and city names from
// the embedded locale catalog.
package i18n

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var embedded []byte

// Language is a selectable locale and the label of its selection button.
type Language struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// City is a city option rendered for a locale.
type City struct {
	Code string
	Name string
}

type cityEntry struct {
	Code  string            `yaml:"code"`
	Names map[string]string `yaml:"names"`
}

type catalogFile struct {
	Default   string                       `yaml:"default"`
	Languages []Language                   `yaml:"languages"`
	Cities    []cityEntry                  `yaml:"cities"`
	Buttons   map[string]map[string]string `yaml:"buttons"`
	Messages  map[string]map[string]string `yaml:"messages"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	def       string
	languages []Language
	cities    []cityEntry
	buttons   map[string]map[string]string
	messages  map[string]map[string]string
}

// Default loads the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// MustDefault is Default that panics on a broken embedded catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML and checks that every language carries
// the same message and button keys as the default language.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse locale catalog: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("locale catalog: no languages")
	}
	if f.Default == "" {
		f.Default = f.Languages[0].Code
	}
	c := &Catalog{
		def:       f.Default,
		languages: f.Languages,
		cities:    f.Cities,
		buttons:   f.Buttons,
		messages:  f.Messages,
	}
	if !c.Has(c.def) {
		return nil, fmt.Errorf("locale catalog: default language %q not listed", c.def)
	}
	for _, lang := range c.languages {
		if err := sameKeys(f.Messages[c.def], f.Messages[lang.Code]); err != nil {
			return nil, fmt.Errorf("locale catalog: messages %s: %w", lang.Code, err)
		}
		if err := sameKeys(f.Buttons[c.def], f.Buttons[lang.Code]); err != nil {
			return nil, fmt.Errorf("locale catalog: buttons %s: %w", lang.Code, err)
		}
	}
	for _, city := range c.cities {
		for _, lang := range c.languages {
			if city.Names[lang.Code] == "" {
				return nil, fmt.Errorf("locale catalog: city %s has no %s name", city.Code, lang.Code)
			}
		}
	}
	return c, nil
}

func sameKeys(want, got map[string]string) error {
	for k := range want {
		if _, ok := got[k]; !ok {
			return fmt.Errorf("missing key %q", k)
		}
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			return fmt.Errorf("unknown key %q", k)
		}
	}
	return nil
}

// DefaultLanguage returns the fallback locale code.
func (c *Catalog) DefaultLanguage() string { return c.def }

// Languages lists the supported locales in presentation order.
func (c *Catalog) Languages() []Language {
	out := make([]Language, len(c.languages))
	copy(out, c.languages)
	return out
}

// Has reports whether code is a supported locale.
func (c *Catalog) Has(code string) bool {
	for _, l := range c.languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// LanguageByLabel resolves a language button label to its locale code.
func (c *Catalog) LanguageByLabel(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, l := range c.languages {
		if l.Label == text {
			return l.Code, true
		}
	}
	return "", false
}

func (c *Catalog) resolve(lang string) string {
	if c.Has(lang) {
		return lang
	}
	return c.def
}

// T renders message key in lang, falling back to the default language and
// finally to the key itself.
func (c *Catalog) T(lang, key string, args ...any) string {
	msg, ok := c.messages[c.resolve(lang)][key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Button returns the label of button key in lang.
func (c *Catalog) Button(lang, key string) string {
	if label, ok := c.buttons[c.resolve(lang)][key]; ok {
		return label
	}
	return key
}

// IsButton reports whether text is the label of button key in any language.
// Menu buttons are honored regardless of the session language.
func (c *Catalog) IsButton(text, key string) bool {
	text = strings.TrimSpace(text)
	for _, l := range c.languages {
		if c.buttons[l.Code][key] == text {
			return true
		}
	}
	return false
}

// Cities lists the city options in lang.
func (c *Catalog) Cities(lang string) []City {
	lang = c.resolve(lang)
	out := make([]City, 0, len(c.cities))
	for _, city := range c.cities {
		out = append(out, City{Code: city.Code, Name: city.Names[lang]})
	}
	return out
}

// CityByName resolves a city button label shown in lang to its code.
func (c *Catalog) CityByName(lang, text string) (string, bool) {
	text = strings.TrimSpace(text)
	for _, city := range c.Cities(lang) {
		if city.Name == text {
			return city.Code, true
		}
	}
	return "", false
}

// CityName renders a city code in lang; unknown codes are returned as is.
func (c *Catalog) CityName(lang, code string) string {
	lang = c.resolve(lang)
	for _, city := range c.cities {
		if city.Code == code {
			return city.Names[lang]
		}
	}
	return code
}

// HasCity reports whether code is a known city.
func (c *Catalog) HasCity(code string) bool {
	for _, city := range c.cities {
		if city.Code == code {
			return true
		}
	}
	return false
}
