package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/glossian/internal/db"
	"horse.fit/glossian/internal/dispatch"
	"horse.fit/glossian/internal/globaltime"
	"horse.fit/glossian/internal/surface"
	"horse.fit/glossian/internal/translation"
)

const maxBodyBytes = 64 << 10

type messageItem struct {
	ID                   int64      `json:"id"`
	SenderName           string     `json:"sender_name,omitempty"`
	OriginalText         string     `json:"original_text"`
	OriginalLang         string     `json:"original_lang"`
	TranslatedText       string     `json:"translated_text"`
	TranslatedSenderName string     `json:"translated_sender_name,omitempty"`
	TargetLang           string     `json:"target_lang"`
	EngineID             int        `json:"engine_id"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

type questPlateItem struct {
	ID                     int64             `json:"id"`
	QuestID                string            `json:"quest_id"`
	OriginalText           string            `json:"original_text"`
	TranslatedText         string            `json:"translated_text"`
	OriginalQuestMessage   string            `json:"original_quest_message,omitempty"`
	TranslatedQuestMessage string            `json:"translated_quest_message,omitempty"`
	Objectives             map[string]string `json:"objectives"`
	Summaries              map[string]string `json:"summaries"`
	TargetLang             string            `json:"target_lang"`
	EngineID               int               `json:"engine_id"`
	RowVersion             int64             `json:"row_version"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              *time.Time        `json:"updated_at,omitempty"`
}

type nodeUpdate struct {
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	Sender  string `json:"sender"`
	Visible *bool  `json:"visible"`
}

type nodeView struct {
	surface.Target
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(c.Request().Context()); err != nil {
			s.logger.Error().Err(err).Msg("store health check failed")
			return internalError(c, "Store is unavailable")
		}
	}
	return success(c, map[string]any{
		"service": "glossian",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleEngines(c echo.Context) error {
	if s.deps.Engines == nil {
		return success(c, map[string]any{"items": []translation.EngineInfo{}})
	}
	return success(c, map[string]any{
		"items": s.deps.Engines.Describe(),
	})
}

func (s *Server) handleRecords(c echo.Context) error {
	kind, err := db.ParseKind(c.Param("kind"))
	if err != nil {
		return failNotFound(c, err.Error())
	}
	if s.deps.Records == nil {
		return internalError(c, "Records are unavailable")
	}
	ctx := c.Request().Context()

	if kind == db.KindQuestPlate {
		plates, err := s.deps.Records.QuestPlates(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("list quest plates failed")
			return internalError(c, "Failed to load quest plates")
		}
		items := make([]questPlateItem, 0, len(plates))
		for i := range plates {
			items = append(items, toQuestPlateItem(&plates[i]))
		}
		return success(c, map[string]any{"kind": kind, "count": len(items), "items": items})
	}

	rows, err := s.deps.Records.Messages(ctx, kind)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("list messages failed")
		return internalError(c, "Failed to load messages")
	}
	items := make([]messageItem, 0, len(rows))
	for i := range rows {
		items = append(items, toMessageItem(&rows[i]))
	}
	return success(c, map[string]any{"kind": kind, "count": len(items), "items": items})
}

func (s *Server) handleTranslate(c echo.Context) error {
	kind, err := db.ParseKind(c.Param("kind"))
	if err != nil {
		return failNotFound(c, err.Error())
	}
	if kind == db.KindQuestPlate {
		return fail(c, http.StatusBadRequest, "Quest plates are translated through /api/v1/quests", nil)
	}

	var req dispatch.Request
	if err := s.bindPayload(c, schemaTranslate, &req); err != nil {
		return s.payloadFailure(c, err)
	}

	d, err := s.deps.Dispatchers.Get(kind)
	if err != nil {
		return failNotFound(c, err.Error())
	}

	result, err := d.Process(c.Request().Context(), req)
	if err != nil {
		var backendErr *translation.BackendError
		if errors.As(err, &backendErr) {
			return upstreamError(c, err.Error(), result)
		}
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("translate failed")
		return internalError(c, "Translation failed")
	}
	return success(c, result)
}

func (s *Server) handleQuest(c echo.Context) error {
	var req dispatch.QuestRequest
	if err := s.bindPayload(c, schemaQuest, &req); err != nil {
		return s.payloadFailure(c, err)
	}

	d, err := s.deps.Dispatchers.Get(db.KindQuestPlate)
	if err != nil {
		return failNotFound(c, err.Error())
	}

	result, err := d.ProcessQuest(c.Request().Context(), req)
	if err != nil {
		var backendErr *translation.BackendError
		if errors.As(err, &backendErr) {
			return upstreamError(c, err.Error(), result)
		}
		s.logger.Error().Err(err).Str("quest_id", req.QuestID).Msg("quest translate failed")
		return internalError(c, "Quest translation failed")
	}
	return success(c, result)
}

func (s *Server) handleGetNode(c echo.Context) error {
	if s.deps.Surface == nil {
		return failNotFound(c, "No surface is attached")
	}
	target := surface.Target{SurfaceID: c.Param("surface"), NodeID: c.Param("node")}
	text, visible, ok := s.deps.Surface.Node(target)
	if !ok {
		return failNotFound(c, "Node not found")
	}
	return success(c, nodeView{Target: target, Text: text, Visible: visible})
}

// handlePutNode mirrors a UI text change. The node's text is set immediately and a
// work item is queued; the poller re-reads the node when it drains the queue, so
// only the text still on screen at that point is translated.
func (s *Server) handlePutNode(c echo.Context) error {
	if s.deps.Surface == nil || s.deps.Queue == nil {
		return failNotFound(c, "No surface is attached")
	}

	var update nodeUpdate
	if err := s.bindPayload(c, schemaSurfaceNode, &update); err != nil {
		return s.payloadFailure(c, err)
	}
	kind, err := db.ParseKind(update.Kind)
	if err != nil {
		return failValidation(c, map[string]string{"/kind": err.Error()})
	}

	visible := true
	if update.Visible != nil {
		visible = *update.Visible
	}

	target := surface.Target{SurfaceID: c.Param("surface"), NodeID: c.Param("node")}
	s.deps.Surface.SetNode(target, update.Text, visible)

	queued := false
	if visible {
		queued = s.deps.Queue.Enqueue(surface.WorkItem{Kind: kind, Target: target, Sender: update.Sender})
		if !queued {
			s.logger.Warn().Str("target", target.String()).Msg("work queue is full, dropping node update")
		}
	}

	return successWithStatus(c, http.StatusAccepted, map[string]any{
		"target": target,
		"queued": queued,
	})
}

func (s *Server) bindPayload(c echo.Context, schemaName string, out any) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return &payloadError{fields: map[string]string{"/": "failed to read request body"}}
	}
	return decodePayload(schemaName, raw, out)
}

func (s *Server) payloadFailure(c echo.Context, err error) error {
	var payloadErr *payloadError
	if errors.As(err, &payloadErr) {
		return failValidation(c, payloadErr.fields)
	}
	s.logger.Error().Err(err).Msg("payload validation failed")
	return internalError(c, "Failed to validate request")
}

func toMessageItem(row *db.Message) messageItem {
	return messageItem{
		ID:                   row.ID,
		SenderName:           row.SenderName,
		OriginalText:         row.OriginalText,
		OriginalLang:         row.OriginalLang,
		TranslatedText:       row.TranslatedText,
		TranslatedSenderName: row.TranslatedSenderName,
		TargetLang:           row.TargetLang,
		EngineID:             row.EngineID,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func toQuestPlateItem(plate *db.QuestPlate) questPlateItem {
	objectives := plate.Objectives
	if objectives == nil {
		objectives = map[string]string{}
	}
	summaries := plate.Summaries
	if summaries == nil {
		summaries = map[string]string{}
	}
	return questPlateItem{
		ID:                     plate.ID,
		QuestID:                plate.QuestID,
		OriginalText:           plate.OriginalText,
		TranslatedText:         plate.TranslatedText,
		OriginalQuestMessage:   plate.OriginalQuestMessage,
		TranslatedQuestMessage: plate.TranslatedQuestMessage,
		Objectives:             objectives,
		Summaries:              summaries,
		TargetLang:             plate.TargetLang,
		EngineID:               plate.EngineID,
		RowVersion:             plate.RowVersion,
		CreatedAt:              plate.CreatedAt,
		UpdatedAt:              plate.UpdatedAt,
	}
}
