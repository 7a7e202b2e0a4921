// Package localization renders the user-facing strings the realtime layer
// pushes, such as notification texts. Translations are JSON files keyed by
// language code ("en.json", "uk.json").
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// DefaultLang is used when a user has no language or a key is missing.
const DefaultLang = "en"

const KeyNewMessage = "notification.new_message"

//go:embed locales/*.json
var bundled embed.FS

// Localizer holds translations per language. It is read-only after load.
type Localizer struct {
	translations map[string]map[string]string
}

// NewLocalizer loads every *.json file at the root of fsys.
func NewLocalizer(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{translations: make(map[string]map[string]string)}

	files, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}
	for _, file := range files {
		if file.IsDir() || path.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}
		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}
		l.translations[strings.TrimSuffix(file.Name(), ".json")] = translations
	}
	return l, nil
}

// Default returns the translations compiled into the binary.
func Default() *Localizer {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		panic(err)
	}
	l, err := NewLocalizer(sub)
	if err != nil {
		panic(err)
	}
	return l
}

// GetString returns the string for key in lang, falling back to DefaultLang
// and then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	if v, ok := l.translations[strings.ToLower(lang)][key]; ok {
		return v
	}
	if v, ok := l.translations[DefaultLang][key]; ok {
		return v
	}
	return key
}

// Format is GetString followed by fmt.Sprintf.
func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}
