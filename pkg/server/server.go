package server

import (
	"context"
	"maps"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fable/pkg/inference"
	"fable/pkg/queue"
	"fable/pkg/schema"
	"fable/pkg/tokenizer"
	"fable/pkg/utils"
)

const storiesFile = "Stories.json"

type Server struct {
	Echo       *echo.Echo
	Inferencer inference.Inferencer
	Tokenizer  *tokenizer.Tokenizer
	Queue      queue.Queue
	// Stories may be assigned before Start; once handlers are live every
	// access goes through the accessors below.
	Stories map[string]schema.StoredStory
	mu      sync.RWMutex
	Ctx     context.Context
}

func NewServer(ctx context.Context, inf inference.Inferencer, tk *tokenizer.Tokenizer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:       e,
		Inferencer: inf,
		Tokenizer:  tk,
		Stories:    make(map[string]schema.StoredStory),
		Ctx:        ctx,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.POST("/stories", s.handlePostGenerate)           // generate story + illustrations (SSE)
	api.GET("/stories", s.handleListStories)             // stored story index
	api.GET("/stories/:id", s.handleGetStory)            // one stored story
	api.DELETE("/stories/:id", s.handleDeleteStory)      // remove a stored story
	api.POST("/stories/:id/revise", s.handlePostRevise)  // rewrite one paragraph
	api.POST("/stories/:id/images", s.handlePostImages)  // regenerate illustrations

	// generated illustrations for the reader
	s.Echo.Static("/images", "images")
}

func (s *Server) Start(addr string) error {
	log.Info("server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info("shutting down server")

	saveErr := s.saveStories()
	if err := s.Echo.Shutdown(ctx); err != nil {
		return err
	}

	return saveErr
}

func (s *Server) getStory(id string) (schema.StoredStory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.Stories[id]
	return record, ok
}

func (s *Server) putStory(record schema.StoredStory) {
	s.mu.Lock()
	s.Stories[record.ID] = record
	s.mu.Unlock()
}

func (s *Server) removeStory(id string) {
	s.mu.Lock()
	delete(s.Stories, id)
	s.mu.Unlock()
}

func (s *Server) storyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Stories)
}

// snapshotStories returns a shallow copy so callers can iterate or marshal
// without holding the lock.
func (s *Server) snapshotStories() map[string]schema.StoredStory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.Stories)
}

func (s *Server) saveStories() error {
	return utils.Save(storiesFile, s.snapshotStories())
}
