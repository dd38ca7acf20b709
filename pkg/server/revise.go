package server

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"
	"github.com/segmentio/ksuid"

	"fable/pkg/diff"
	"fable/pkg/schema"
	"fable/pkg/utils"
)

type reviseReq struct {
	ParagraphIndex int    `json:"paragraph_index"`
	Instruction    string `json:"instruction"`
	ReadingLevel   string `json:"reading_level,omitempty"`
}

const maxRevisionEntries = 50

// POST /api/stories/:id/revise
//
// Rewrites one paragraph of a stored story and returns the new text together
// with a word-level diff, keeping a capped revision history on the record.
func (s *Server) handlePostRevise(c echo.Context) error {
	record, ok := s.getStory(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("story not found"))
	}

	var req reviseReq
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/stories/:id/revise", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Instruction = strings.TrimSpace(req.Instruction)
	if req.Instruction == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "instruction is required")
	}
	if req.ParagraphIndex < 0 || req.ParagraphIndex >= len(record.Story.Content) {
		return echo.NewHTTPError(http.StatusBadRequest, "paragraph_index out of range")
	}

	original := record.Story.Content[req.ParagraphIndex]

	systemPrompt := reviseSystemPrompt + "\n\nInstruction: " + req.Instruction
	if reading, ok := readingGuidance[req.ReadingLevel]; ok {
		systemPrompt += "\nUse " + reading + "."
	}

	ctx := c.Request().Context()
	params := &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(int64(cmp.Or(len(original)*2, 1024))),
		Temperature:         openai.Float(0.25),
	}
	result, err := s.Inferencer.Edit(ctx, params, systemPrompt, original)
	if err != nil {
		log.Error("revision inference failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "revision inference failed")
	}
	result = strings.TrimSpace(result)
	if ok, err := s.Inferencer.Verify(ctx, result); !ok {
		log.Error("revision failed verification", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "empty revision result")
	}

	deltas := diff.Words(original, result)

	revision := schema.Revision{
		ID:             ksuid.New().String(),
		ParagraphIndex: req.ParagraphIndex,
		Instruction:    req.Instruction,
		ReadingLevel:   req.ReadingLevel,
		Original:       original,
		Result:         result,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	// clone before mutating: the stored copy shares this backing array and
	// may be serialized by a concurrent read
	record.Story.Content = slices.Clone(record.Story.Content)
	record.Story.Content[req.ParagraphIndex] = result
	record.Revisions = append([]schema.Revision{revision}, record.Revisions...)
	if len(record.Revisions) > maxRevisionEntries {
		record.Revisions = record.Revisions[:maxRevisionEntries]
	}
	s.putStory(record)
	if err := s.saveStories(); err != nil {
		log.Warn("failed saving stories after revision", "error", err)
	}

	log.Info("revision complete", "id", record.ID, "paragraph", req.ParagraphIndex,
		"changed", diff.Changed(deltas), "revisions", len(record.Revisions))

	return c.JSON(http.StatusOK, map[string]any{
		"result":   result,
		"deltas":   deltas,
		"summary":  diff.Summary(deltas),
		"revision": revision,
	})
}
