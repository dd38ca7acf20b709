package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"
	"github.com/segmentio/ksuid"

	"fable/pkg/schema"
	"fable/pkg/story"
	"fable/pkg/utils"
)

// POST /api/stories
//
// Generates a story from the request parameters, analyzes it, and streams
// progress over SSE: "prompt" with token accounting, "story" once the text is
// parsed and analyzed, one "image"/"image_error" per illustration, and "done"
// with the stored record.
func (s *Server) handlePostGenerate(c echo.Context) error {
	var req schema.GenerateParams
	if err := c.Bind(&req); err != nil {
		log.Error("invalid JSON in /api/stories", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	switch req.Mode {
	case schema.ModeTemplate:
		if strings.TrimSpace(req.Template) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "template mode requires a template")
		}
	case schema.ModeKeywords:
		if strings.TrimSpace(req.Keywords) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "keywords mode requires keywords")
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be template or keywords")
	}

	built, err := s.buildStoryPrompt(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	log.Info("built story prompt", "mode", req.Mode,
		"system_tokens", built.SystemTokens, "user_tokens", built.UserTokens, "total_tokens", built.TotalTokens)

	w := utils.NewSSEWriter(c)
	defer w.Close()

	_ = w.Event("prompt", map[string]any{
		"system_tokens": built.SystemTokens,
		"user_tokens":   built.UserTokens,
		"total_tokens":  built.TotalTokens,
		"components":    built.Components,
	})

	ctx := c.Request().Context()
	params := &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(4096),
		ResponseFormat:      schema.StructuredOutputsResponseFormat(),
	}

	out, err := s.Inferencer.Infer(ctx, params, built.SystemPrompt, built.UserPrompt)
	if err != nil {
		log.Error("story inference failed", "error", err)
		_ = w.Event("error", map[string]string{"error": err.Error()})
		return nil
	}

	st, err := s.parseStory(ctx, params, built.SystemPrompt, out)
	if err != nil {
		log.Error("story parse failed", "error", err)
		_ = w.Event("error", map[string]string{"error": err.Error()})
		return nil
	}

	analysis := story.Analyze(st.Title, st.Content, st.Theme)
	log.Info("story analyzed", "title", st.Title, "paragraphs", len(st.Content),
		"characters", len(analysis.MainCharacters), "beats", len(analysis.NarrativeElements),
		"illustrations", len(analysis.RecommendedImageParagraphs))
	log.Debug("story analysis", "analysis", utils.PrettyJSON(analysis))

	record := schema.StoredStory{
		ID:           ksuid.New().String(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Params:       req,
		Story:        st,
		Analysis:     analysis,
		ImagePrompts: make(map[int]string),
		Images:       make(map[int]string),
	}
	for _, idx := range analysis.RecommendedImageParagraphs {
		if idx < 0 || idx >= len(st.Content) {
			continue
		}
		record.ImagePrompts[idx] = story.ImagePrompt(st.Content[idx], analysis, idx)
	}

	if err := w.Event("story", record); err != nil {
		log.Warn("SSE write error", "error", err)
		return nil
	}

	s.generateIllustrations(c, w, &record)

	s.putStory(record)
	if err := s.saveStories(); err != nil {
		log.Warn("failed saving stories", "error", err)
	}
	log.Info("story complete", "id", record.ID, "title", st.Title, "images", len(record.Images))

	return w.Event("done", record)
}

// parseStory turns raw model output into a Story, tolerating markdown fences,
// reasoning preambles, and clipped braces, with one fix-JSON retry through
// the model.
func (s *Server) parseStory(ctx context.Context, params *openai.ChatCompletionNewParams, systemPrompt, out string) (schema.Story, error) {
	clean := normalizeJSON(out)
	if clean == "" {
		return schema.Story{}, errors.New("model returned no JSON object")
	}

	var st schema.Story
	if err := json.Unmarshal([]byte(clean), &st); err == nil && len(st.Content) > 0 {
		return st, nil
	}

	log.Warn("failed to parse story JSON, attempting to fix")
	log.Debug("original model output", "output", out)

	fixed, err := s.Inferencer.Infer(ctx, params, systemPrompt+"\n\n"+fixJSONPrompt,
		"Fix and complete the following malformed JSON:\n\n"+clean)
	if err != nil {
		return schema.Story{}, fmt.Errorf("fix inference failed: %w", err)
	}
	fixed = normalizeJSON(fixed)
	if err := json.Unmarshal([]byte(fixed), &st); err != nil || len(st.Content) == 0 {
		log.Debug("fixed model output", "output", fixed)
		return schema.Story{}, errors.New("could not parse story JSON after fix attempt")
	}
	return st, nil
}

// normalizeJSON strips code fences and reasoning tags, then clamps the text
// to its outermost braces.
func normalizeJSON(out string) string {
	if strings.Contains(out, "<think>") {
		if idx := strings.LastIndex(out, "</think>"); idx != -1 {
			out = out[idx+len("</think>"):]
		}
	}
	out = utils.CleanJSON(out)
	if out == "" {
		return ""
	}
	if out[0] != '{' {
		if j := strings.Index(out, "{"); j != -1 {
			out = out[j:]
		} else {
			return ""
		}
	}
	if out[len(out)-1] != '}' {
		if j := strings.LastIndex(out, "}"); j != -1 {
			out = out[:j+1]
		} else {
			return ""
		}
	}
	return out
}

// generateIllustrations runs every recommended image prompt through the
// queue, saving each result and reporting progress on the SSE stream. A
// failed image is reported and skipped; the reader substitutes a placeholder,
// so one bad generation never fails the story.
func (s *Server) generateIllustrations(c echo.Context, w *utils.SSEWriter, record *schema.StoredStory) {
	if s.Queue == nil {
		log.Warn("no image queue configured, skipping illustrations", "id", record.ID)
		return
	}

	for _, idx := range record.Analysis.RecommendedImageParagraphs {
		prompt, ok := record.ImagePrompts[idx]
		if !ok {
			continue
		}
		if cancelled(c) {
			log.Warn("illustration generation cancelled by client", "id", record.ID)
			return
		}

		req := schema.DefaultImageRequest(prompt)
		req.StoryID = record.ID
		req.ParagraphIndex = idx

		respCh, errCh, err := s.Queue.Add(req)
		if err != nil {
			log.Error("illustration enqueue failed", "id", record.ID, "paragraph", idx, "error", err)
			_ = w.Event("image_error", map[string]any{"paragraph": idx, "error": err.Error()})
			continue
		}

		select {
		case <-c.Request().Context().Done():
			return
		case err := <-errCh:
			if err != nil {
				_ = w.Event("image_error", map[string]any{"paragraph": idx, "error": err.Error()})
			}
		case images := <-respCh:
			if len(images) == 0 {
				_ = w.Event("image_error", map[string]any{"paragraph": idx, "error": "no images generated"})
				continue
			}
			filename, err := s.saveIllustration(images[0], record.ID, idx)
			if err != nil {
				log.Error("failed saving illustration", "id", record.ID, "paragraph", idx, "error", err)
				_ = w.Event("image_error", map[string]any{"paragraph": idx, "error": err.Error()})
				continue
			}
			record.Images[idx] = filename
			_ = w.Event("image", map[string]any{"paragraph": idx, "url": "/images/stories/" + filename})
		}
	}
}

func cancelled(c echo.Context) bool {
	select {
	case <-c.Request().Context().Done():
		return true
	default:
		return false
	}
}
