package db

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeFragments serializes a fragment map (original -> translated) into the flat text
// stored in objectives_text / summaries_text. Keys are emitted in sorted order.
func EncodeFragments(fragments map[string]string) (string, error) {
	if len(fragments) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(fragments)
	if err != nil {
		return "", fmt.Errorf("encode fragments: %w", err)
	}
	return string(raw), nil
}

// DecodeFragments parses the flat text form back into a map. Blank input decodes to an
// empty map.
func DecodeFragments(text string) (map[string]string, error) {
	trimmed := strings.TrimSpace(text)
	out := map[string]string{}
	if trimmed == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("decode fragments: %w", err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// MergeFragments adds every entry of add that dst does not already hold. Existing
// entries are never overwritten. Returns the number of entries added.
func MergeFragments(dst, add map[string]string) int {
	if dst == nil {
		return 0
	}
	added := 0
	for original, translated := range add {
		if _, exists := dst[original]; exists {
			continue
		}
		dst[original] = translated
		added++
	}
	return added
}

func copyFragments(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (q *QuestPlate) encodeFragments() error {
	objectives, err := EncodeFragments(q.Objectives)
	if err != nil {
		return fmt.Errorf("objectives: %w", err)
	}
	summaries, err := EncodeFragments(q.Summaries)
	if err != nil {
		return fmt.Errorf("summaries: %w", err)
	}
	q.ObjectivesText = objectives
	q.SummariesText = summaries
	return nil
}

func (q *QuestPlate) decodeFragments() error {
	objectives, err := DecodeFragments(q.ObjectivesText)
	if err != nil {
		return fmt.Errorf("quest plate %d objectives: %w", q.ID, err)
	}
	summaries, err := DecodeFragments(q.SummariesText)
	if err != nil {
		return fmt.Errorf("quest plate %d summaries: %w", q.ID, err)
	}
	q.Objectives = objectives
	q.Summaries = summaries
	return nil
}
