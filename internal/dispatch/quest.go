package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/glossian/internal/db"
)

type QuestRequest struct {
	QuestID    string   `json:"quest_id"`
	QuestName  string   `json:"quest_name"`
	Message    string   `json:"message,omitempty"`
	Objectives []string `json:"objectives,omitempty"`
	Summaries  []string `json:"summaries,omitempty"`
}

// QuestResult maps every requested fragment to its translation. Fragments that
// could not be translated map to themselves.
type QuestResult struct {
	Outcome    Outcome           `json:"outcome"`
	QuestName  string            `json:"quest_name"`
	Message    string            `json:"message,omitempty"`
	Objectives map[string]string `json:"objectives"`
	Summaries  map[string]string `json:"summaries"`
	RecordID   int64             `json:"record_id,omitempty"`
	TraceID    string            `json:"trace_id"`
}

type questFragments struct {
	message    string
	objectives []string
	summaries  []string
}

// questAdditions holds newly translated parts waiting to be merged into a plate.
type questAdditions struct {
	message           string
	translatedMessage string
	objectives        map[string]string
	summaries         map[string]string
}

func (a questAdditions) empty() bool {
	return a.translatedMessage == "" && len(a.objectives) == 0 && len(a.summaries) == 0
}

// ProcessQuest looks up the quest plate for (quest id, name) and translates only
// what the stored plate is missing. Objective and summary maps only ever grow.
func (d *Dispatcher) ProcessQuest(ctx context.Context, req QuestRequest) (QuestResult, error) {
	traceID := uuid.NewString()
	logger := d.logger.With().Str("trace_id", traceID).Str("quest_id", req.QuestID).Logger()

	parts := questFragments{
		message:    Sanitize(req.Message),
		objectives: cleanFragments(req.Objectives),
		summaries:  cleanFragments(req.Summaries),
	}
	result := QuestResult{
		Outcome:    OutcomeSkipped,
		QuestName:  req.QuestName,
		Message:    req.Message,
		Objectives: fragmentResult(parts.objectives, nil),
		Summaries:  fragmentResult(parts.summaries, nil),
		TraceID:    traceID,
	}
	if d.kind != db.KindQuestPlate {
		return result, fmt.Errorf("dispatcher for %s cannot process quest plates", d.kind)
	}

	name := Sanitize(req.QuestName)
	if IsSentinel(name) {
		return result, nil
	}
	key := db.QuestKey{
		QuestID:    strings.TrimSpace(req.QuestID),
		QuestName:  name,
		TargetLang: d.targetLang,
		EngineID:   int(d.provider.Engine()),
	}

	plate, err := d.store.FindQuestPlate(ctx, key, d.matchEngine)
	switch {
	case err == nil:
		return d.growQuestPlate(ctx, logger, plate, parts, result)
	case isMiss(err):
		return d.createQuestPlate(ctx, logger, key, parts, result)
	default:
		logger.Error().Err(err).Msg("quest plate lookup failed, keeping original text")
		result.Outcome = OutcomeFailed
		return result, nil
	}
}

func (d *Dispatcher) createQuestPlate(ctx context.Context, logger zerolog.Logger, key db.QuestKey, parts questFragments, result QuestResult) (QuestResult, error) {
	translatedName, outcome, err := d.translate(ctx, key.QuestName)
	if err != nil {
		logger.Error().Err(err).Msg("quest name translation failed")
		result.Outcome = OutcomeFailed
		return result, err
	}
	if outcome == OutcomeFallback {
		logger.Warn().Msg("provider fell back on quest name, not caching")
		result.Outcome = OutcomeFallback
		return result, nil
	}

	add, err := d.translateQuestParts(ctx, logger, parts, nil)
	if err != nil {
		result.Outcome = OutcomeFailed
		return result, err
	}

	plate := &db.QuestPlate{
		QuestID:        key.QuestID,
		OriginalText:   key.QuestName,
		OriginalLang:   d.sourceLang,
		TranslatedText: translatedName,
		TargetLang:     d.targetLang,
		EngineID:       key.EngineID,
		Objectives:     map[string]string{},
		Summaries:      map[string]string{},
	}
	applyAdditions(plate, add)

	stored, err := d.store.InsertQuestPlate(ctx, plate)
	if err != nil {
		logger.Error().Err(err).Msg("persist quest plate failed")
	} else {
		plate = stored
		logger.Info().Int64("record_id", stored.ID).Msg("quest plate cached")
	}

	return questResult(result, OutcomeTranslated, plate, parts), nil
}

func (d *Dispatcher) growQuestPlate(ctx context.Context, logger zerolog.Logger, plate *db.QuestPlate, parts questFragments, result QuestResult) (QuestResult, error) {
	add, err := d.translateQuestParts(ctx, logger, parts, plate)
	if err != nil {
		failed := questResult(result, OutcomeFailed, plate, parts)
		return failed, err
	}
	if add.empty() {
		logger.Debug().Int64("record_id", plate.ID).Msg("quest plate cache hit")
		return questResult(result, OutcomeCacheHit, plate, parts), nil
	}

	merged := plate.Clone()
	applyAdditions(merged, add)

	updated, err := d.store.UpdateQuestPlate(ctx, merged)
	if errors.Is(err, db.ErrConflict) {
		logger.Debug().Int64("record_id", plate.ID).Msg("quest plate changed concurrently, retrying merge")
		fresh, getErr := d.store.GetQuestPlate(ctx, plate.ID)
		if getErr != nil {
			err = getErr
		} else {
			merged = fresh.Clone()
			applyAdditions(merged, add)
			updated, err = d.store.UpdateQuestPlate(ctx, merged)
		}
	}
	if err != nil {
		logger.Error().Err(err).Int64("record_id", plate.ID).Msg("persist quest plate failed")
		return questResult(result, OutcomeTranslated, merged, parts), nil
	}

	logger.Info().Int64("record_id", updated.ID).Msg("quest plate extended")
	return questResult(result, OutcomeTranslated, updated, parts), nil
}

// translateQuestParts translates the message and fragments that plate does not hold
// yet. Fragments the provider fell back on are left out so a later call retries them.
func (d *Dispatcher) translateQuestParts(ctx context.Context, logger zerolog.Logger, parts questFragments, plate *db.QuestPlate) (questAdditions, error) {
	add := questAdditions{
		objectives: map[string]string{},
		summaries:  map[string]string{},
	}

	if parts.message != "" && (plate == nil || plate.TranslatedQuestMessage == "") {
		translated, outcome, err := d.translate(ctx, parts.message)
		if err != nil {
			logger.Error().Err(err).Msg("quest message translation failed")
			return add, err
		}
		if outcome == OutcomeTranslated {
			add.message = parts.message
			add.translatedMessage = translated
		}
	}

	var known map[string]string
	if plate != nil {
		known = plate.Objectives
	}
	if err := d.translateMissing(ctx, parts.objectives, known, add.objectives); err != nil {
		logger.Error().Err(err).Msg("quest objective translation failed")
		return add, err
	}

	known = nil
	if plate != nil {
		known = plate.Summaries
	}
	if err := d.translateMissing(ctx, parts.summaries, known, add.summaries); err != nil {
		logger.Error().Err(err).Msg("quest summary translation failed")
		return add, err
	}
	return add, nil
}

func (d *Dispatcher) translateMissing(ctx context.Context, fragments []string, known, out map[string]string) error {
	for _, fragment := range fragments {
		if _, ok := known[fragment]; ok {
			continue
		}
		translated, outcome, err := d.translate(ctx, fragment)
		if err != nil {
			return err
		}
		if outcome == OutcomeTranslated {
			out[fragment] = translated
		}
	}
	return nil
}

func applyAdditions(plate *db.QuestPlate, add questAdditions) {
	if plate.Objectives == nil {
		plate.Objectives = map[string]string{}
	}
	if plate.Summaries == nil {
		plate.Summaries = map[string]string{}
	}
	db.MergeFragments(plate.Objectives, add.objectives)
	db.MergeFragments(plate.Summaries, add.summaries)
	if add.translatedMessage != "" && plate.TranslatedQuestMessage == "" {
		plate.OriginalQuestMessage = add.message
		plate.TranslatedQuestMessage = add.translatedMessage
	}
}

func questResult(base QuestResult, outcome Outcome, plate *db.QuestPlate, parts questFragments) QuestResult {
	base.Outcome = outcome
	if plate == nil {
		return base
	}
	base.RecordID = plate.ID
	if plate.TranslatedText != "" {
		base.QuestName = plate.TranslatedText
	}
	if parts.message != "" && plate.OriginalQuestMessage == parts.message && plate.TranslatedQuestMessage != "" {
		base.Message = plate.TranslatedQuestMessage
	}
	base.Objectives = fragmentResult(parts.objectives, plate.Objectives)
	base.Summaries = fragmentResult(parts.summaries, plate.Summaries)
	return base
}

func fragmentResult(fragments []string, translated map[string]string) map[string]string {
	out := make(map[string]string, len(fragments))
	for _, fragment := range fragments {
		if value, ok := translated[fragment]; ok {
			out[fragment] = value
			continue
		}
		out[fragment] = fragment
	}
	return out
}

// cleanFragments sanitizes fragments and drops duplicates and sentinels.
func cleanFragments(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, fragment := range raw {
		cleaned := Sanitize(fragment)
		if IsSentinel(cleaned) {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}
