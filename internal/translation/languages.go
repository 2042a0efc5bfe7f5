package translation

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"horse.fit/glossian/internal/language"
)

const (
	backendGoogle       = "google"
	backendDeepL        = "deepl"
	backendDeepLKeyless = "deepl_keyless"
	backendChatGPT      = "chatgpt"
)

type direction int

const (
	directionSource direction = iota
	directionTarget
)

//go:embed languages.yaml
var languagesYAML []byte

type languageTables struct {
	Names    map[string]string       `yaml:"names"`
	Backends map[string]backendTable `yaml:"backends"`
}

type backendTable struct {
	Source map[string]string `yaml:"source"`
	Target map[string]string `yaml:"target"`
}

var (
	tablesOnce sync.Once
	tables     languageTables
	tablesErr  error
)

func loadLanguageTables() (languageTables, error) {
	tablesOnce.Do(func() {
		tablesErr = yaml.Unmarshal(languagesYAML, &tables)
		if tablesErr != nil {
			tablesErr = fmt.Errorf("parse language tables: %w", tablesErr)
		}
	})
	return tables, tablesErr
}

// canonicalTag resolves a generic language name or tag to the lowercase tag used as
// table key ("Japanese" -> "ja", "zh-Hans" -> "zh-hans").
func canonicalTag(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	t, err := loadLanguageTables()
	if err == nil {
		if tag, ok := t.Names[strings.ToLower(trimmed)]; ok {
			return tag
		}
	}
	return language.NormalizeTag(trimmed)
}

// backendCode maps raw to the code backend expects. ok is false when the table has
// no entry for the tag or its base subtag.
func backendCode(backend string, dir direction, raw string) (string, bool) {
	tag := canonicalTag(raw)
	if tag == "" {
		return "", false
	}
	t, err := loadLanguageTables()
	if err != nil {
		return "", false
	}
	table, ok := t.Backends[backend]
	if !ok {
		return "", false
	}
	codes := table.Source
	if dir == directionTarget {
		codes = table.Target
	}
	if code, ok := codes[tag]; ok {
		return code, true
	}
	if code, ok := codes[language.NormalizeCode(tag)]; ok {
		return code, true
	}
	return "", false
}

// supportedTargets lists the canonical target tags of a backend.
func supportedTargets(backend string) []string {
	t, err := loadLanguageTables()
	if err != nil {
		return nil
	}
	targets := t.Backends[backend].Target
	out := make([]string, 0, len(targets))
	for tag := range targets {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
