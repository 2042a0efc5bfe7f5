package db

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies one category of game UI text. Every kind owns its own table and
// its own dispatcher.
type Kind string

const (
	KindTalk             Kind = "talk"
	KindBattleTalk       Kind = "battle_talk"
	KindSubtitle         Kind = "subtitle"
	KindToast            Kind = "toast"
	KindErrorToast       Kind = "error_toast"
	KindQuestToast       Kind = "quest_toast"
	KindClassChangeToast Kind = "class_change_toast"
	KindAreaToast        Kind = "area_toast"
	KindQuestPlate       Kind = "quest_plate"
)

var kindTables = map[Kind]string{
	KindTalk:             "talk_messages",
	KindBattleTalk:       "battle_talk_messages",
	KindSubtitle:         "talk_subtitle_messages",
	KindToast:            "toast_messages",
	KindErrorToast:       "error_toast_messages",
	KindQuestToast:       "quest_toast_messages",
	KindClassChangeToast: "class_change_toast_messages",
	KindAreaToast:        "area_toast_messages",
	KindQuestPlate:       "quest_plates",
}

// MessageKinds lists every kind stored as a plain Message row.
func MessageKinds() []Kind {
	return []Kind{
		KindTalk,
		KindBattleTalk,
		KindSubtitle,
		KindToast,
		KindErrorToast,
		KindQuestToast,
		KindClassChangeToast,
		KindAreaToast,
	}
}

// AllKinds lists every kind, quest plates included.
func AllKinds() []Kind {
	return append(MessageKinds(), KindQuestPlate)
}

func (k Kind) Table() string {
	return kindTables[k]
}

func (k Kind) Valid() bool {
	_, ok := kindTables[k]
	return ok
}

// HasSender reports whether records of this kind carry a speaker name.
func (k Kind) HasSender() bool {
	return k == KindTalk || k == KindBattleTalk
}

func (k Kind) IsToast() bool {
	switch k {
	case KindToast, KindErrorToast, KindQuestToast, KindClassChangeToast, KindAreaToast:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind resolves a kind name, accepting "-" or "_" separators and any case.
func ParseKind(raw string) (Kind, error) {
	normalized := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if normalized.Valid() {
		return normalized, nil
	}

	names := make([]string, 0, len(kindTables))
	for kind := range kindTables {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return "", fmt.Errorf("unknown message kind %q (available: %s)", raw, strings.Join(names, ", "))
}
