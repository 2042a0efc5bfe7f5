package translation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Engine is the integer tag stored in engine_id on every cached record.
type Engine int

const (
	EngineGoogle  Engine = 0
	EngineDeepL   Engine = 1
	EngineChatGPT Engine = 2
)

// ErrUnknownEngine is a configuration error: the requested engine has no adapter.
var ErrUnknownEngine = errors.New("unknown translation engine")

var engineNames = map[Engine]string{
	EngineGoogle:  "google",
	EngineDeepL:   "deepl",
	EngineChatGPT: "chatgpt",
}

func Engines() []Engine {
	return []Engine{EngineGoogle, EngineDeepL, EngineChatGPT}
}

func (e Engine) String() string {
	if name, ok := engineNames[e]; ok {
		return name
	}
	return "engine(" + strconv.Itoa(int(e)) + ")"
}

func (e Engine) Valid() bool {
	_, ok := engineNames[e]
	return ok
}

// ParseEngine accepts an engine name ("deepl") or its numeric id ("1").
func ParseEngine(raw string) (Engine, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownEngine)
	}
	if id, err := strconv.Atoi(normalized); err == nil {
		if e := Engine(id); e.Valid() {
			return e, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrUnknownEngine, id)
	}
	switch normalized {
	case "openai", "gpt":
		normalized = "chatgpt"
	case "google_translate", "googletranslate":
		normalized = "google"
	}
	for e, name := range engineNames {
		if name == normalized {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEngine, raw)
}

// FailurePolicy decides what a provider does when its backend fails.
type FailurePolicy int

const (
	// FailSoft returns the original text with Fallback set.
	FailSoft FailurePolicy = iota
	// FailHard returns a *BackendError.
	FailHard
)

func (p FailurePolicy) String() string {
	if p == FailHard {
		return "fail-hard"
	}
	return "fail-soft"
}

func PolicyFor(e Engine) FailurePolicy {
	if e == EngineDeepL {
		return FailHard
	}
	return FailSoft
}
