package server

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"fable/pkg/utils"
)

// storySummary is the index entry for the library view; full records are
// fetched per story.
type storySummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Theme      string `json:"theme,omitempty"`
	CreatedAt  string `json:"created_at"`
	Paragraphs int    `json:"paragraphs"`
	Images     int    `json:"images"`
}

// GET /api/stories
func (s *Server) handleListStories(c echo.Context) error {
	stories := s.snapshotStories()
	out := make([]storySummary, 0, len(stories))
	for _, record := range stories {
		out = append(out, storySummary{
			ID:         record.ID,
			Title:      record.Story.Title,
			Theme:      record.Story.Theme,
			CreatedAt:  record.CreatedAt,
			Paragraphs: len(record.Story.Content),
			Images:     len(record.Images),
		})
	}
	// newest first; ksuids sort chronologically but CreatedAt is explicit
	slices.SortFunc(out, func(a, b storySummary) int {
		return strings.Compare(b.CreatedAt, a.CreatedAt)
	})
	return c.JSON(http.StatusOK, out)
}

// GET /api/stories/:id
func (s *Server) handleGetStory(c echo.Context) error {
	record, ok := s.getStory(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("story not found"))
	}
	return c.JSON(http.StatusOK, record)
}

// DELETE /api/stories/:id
func (s *Server) handleDeleteStory(c echo.Context) error {
	id := c.Param("id")
	record, ok := s.getStory(id)
	if !ok {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("story not found"))
	}

	for _, filename := range record.Images {
		path := filepath.Join("images", "stories", filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("failed removing illustration", "path", path, "error", err)
		}
	}

	s.removeStory(id)
	if err := s.saveStories(); err != nil {
		log.Warn("failed saving stories", "error", err)
	}
	log.Info("story deleted", "id", id, "title", record.Story.Title)

	return c.JSON(http.StatusOK, map[string]any{"success": true, "id": id})
}
