package server

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"maps"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/webp"
	"github.com/labstack/echo/v4"

	"fable/pkg/story"
	"fable/pkg/utils"
)

func ensureImageDir() error {
	path := filepath.Join("images", "stories")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	return nil
}

// saveIllustration converts one generated image to WebP and stores it under
// images/stories, returning the filename.
func (s *Server) saveIllustration(r io.Reader, storyID string, paragraph int) (string, error) {
	if err := ensureImageDir(); err != nil {
		return "", fmt.Errorf("failed to create image dir: %w", err)
	}

	imgBytes, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	// Imagen returns PNG; fall back to generic decode in case the API
	// switches formats.
	img, err := png.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		var err2 error
		img, _, err2 = image.Decode(bytes.NewReader(imgBytes))
		if err2 != nil {
			return "", fmt.Errorf("failed to decode image (png: %v, generic: %v)", err, err2)
		}
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode webp: %w", err)
	}

	filename := fmt.Sprintf("%s-%d.webp", utils.SanitizeFilename(storyID), paragraph)
	fullPath := filepath.Join("images", "stories", filename)
	if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}

	return filename, nil
}

type imagesReq struct {
	// Paragraphs restricts regeneration to these indices; empty means every
	// recommended paragraph.
	Paragraphs []int `json:"paragraphs,omitempty"`
}

// POST /api/stories/:id/images
//
// Re-runs illustration generation for a stored story, for example after a
// failed generation or a paragraph revision. Prompts are rebuilt from the
// stored analysis, so retries are deterministic.
func (s *Server) handlePostImages(c echo.Context) error {
	record, ok := s.getStory(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("story not found"))
	}

	var req imagesReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	indices := req.Paragraphs
	if len(indices) == 0 {
		indices = record.Analysis.RecommendedImageParagraphs
	}

	// clone before mutating: the stored copy shares these maps and may be
	// serialized by a concurrent read
	record.ImagePrompts = clonedOrEmpty(record.ImagePrompts)
	record.Images = clonedOrEmpty(record.Images)
	for _, idx := range indices {
		if idx < 0 || idx >= len(record.Story.Content) {
			continue
		}
		record.ImagePrompts[idx] = story.ImagePrompt(record.Story.Content[idx], record.Analysis, idx)
	}

	w := utils.NewSSEWriter(c)
	defer w.Close()

	s.generateIllustrations(c, w, &record)

	s.putStory(record)
	if err := s.saveStories(); err != nil {
		log.Warn("failed saving stories", "error", err)
	}

	return w.Event("done", record)
}

func clonedOrEmpty(m map[int]string) map[int]string {
	if m == nil {
		return make(map[int]string)
	}
	return maps.Clone(m)
}
