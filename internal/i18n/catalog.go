package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/Lina3386/moliya-bot/internal/models"
)

//go:embed locales/*.json
var locales embed.FS

// Args fills the named {slots} of a template.
type Args map[string]any

type locale struct {
	Messages  map[string]string     `json:"messages"`
	Buttons   map[string]string     `json:"buttons"`
	Keyboards map[string][][]string `json:"keyboards"`
}

// Catalog is read-only after Load.
type Catalog struct {
	locales map[string]locale
	labels  map[string]string
}

// Load reads the embedded locale files.
func Load() (*Catalog, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}
	files := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", e.Name(), err)
		}
		files[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return Parse(files)
}

// Parse builds a catalog from raw locale documents keyed by language.
// Labels must be unambiguous across every language.
func Parse(files map[string][]byte) (*Catalog, error) {
	c := &Catalog{
		locales: make(map[string]locale, len(files)),
		labels:  make(map[string]string),
	}

	langs := make([]string, 0, len(files))
	for lang := range files {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	for _, lang := range langs {
		var l locale
		if err := json.Unmarshal(files[lang], &l); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", lang, err)
		}
		for key, label := range l.Buttons {
			norm := normalize(label)
			if prev, ok := c.labels[norm]; ok && prev != key {
				return nil, fmt.Errorf("locale %s: label %q used by %s and %s", lang, label, prev, key)
			}
			c.labels[norm] = key
		}
		for screen, rows := range l.Keyboards {
			for _, row := range rows {
				for _, key := range row {
					if _, ok := l.Buttons[key]; !ok {
						return nil, fmt.Errorf("locale %s: keyboard %s references unknown button %s", lang, screen, key)
					}
				}
			}
		}
		c.locales[lang] = l
	}

	if _, ok := c.locales[models.DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default locale %s is missing", models.DefaultLanguage)
	}
	return c, nil
}

// Lang maps a stored language to a known one, falling back to uz.
func (c *Catalog) Lang(lang string) string {
	if _, ok := c.locales[lang]; ok {
		return lang
	}
	return models.DefaultLanguage
}

func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.locales))
	for lang := range c.locales {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Text renders the template key in lang. Unknown keys fall back to the
// default language and then to the key itself.
func (c *Catalog) Text(lang, key string, args Args) string {
	tmpl, ok := c.locales[c.Lang(lang)].Messages[key]
	if !ok {
		tmpl, ok = c.locales[models.DefaultLanguage].Messages[key]
	}
	if !ok {
		return key
	}
	return render(tmpl, args)
}

func (c *Catalog) Button(lang, key string) string {
	label, ok := c.locales[c.Lang(lang)].Buttons[key]
	if !ok {
		label, ok = c.locales[models.DefaultLanguage].Buttons[key]
	}
	if !ok {
		return key
	}
	return label
}

// Keyboard resolves a screen layout into button labels; extra rows of button keys are appended.
func (c *Catalog) Keyboard(lang, screen string, extra ...[]string) [][]string {
	l := c.locales[c.Lang(lang)]
	rows, ok := l.Keyboards[screen]
	if !ok {
		rows = c.locales[models.DefaultLanguage].Keyboards[screen]
	}
	out := make([][]string, 0, len(rows)+len(extra))
	for _, row := range append(append([][]string{}, rows...), extra...) {
		labels := make([]string, 0, len(row))
		for _, key := range row {
			labels = append(labels, c.Button(lang, key))
		}
		out = append(out, labels)
	}
	return out
}

// Match finds the button key for a label typed or tapped in any language.
func (c *Catalog) Match(text string) (string, bool) {
	key, ok := c.labels[normalize(text)]
	return key, ok
}

// Is reports whether text is the label of key in some language.
func (c *Catalog) Is(text, key string) bool {
	k, ok := c.Match(text)
	return ok && k == key
}

// IsIn reports whether text is the label of key in lang only.
func (c *Catalog) IsIn(lang, text, key string) bool {
	return normalize(text) == normalize(c.Button(lang, key))
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// StripLabel drops the leading emoji of a button label: "💵 Maosh" -> "Maosh".
func StripLabel(label string) string {
	return strings.TrimSpace(strings.TrimLeftFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

func render(tmpl string, args Args) string {
	var b strings.Builder
	for i := 0; i < len(tmpl); {
		open := strings.IndexByte(tmpl[i:], '{')
		if open < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		open += i
		end := strings.IndexByte(tmpl[open:], '}')
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		end += open
		b.WriteString(tmpl[i:open])

		name := tmpl[open+1 : end]
		if v, ok := args[name]; ok && isSlotName(name) {
			b.WriteString(fmt.Sprint(v))
		} else {
			b.WriteString(tmpl[open : end+1])
		}
		i = end + 1
	}
	return b.String()
}

func isSlotName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
