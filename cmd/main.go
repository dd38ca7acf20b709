package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	gommon "github.com/labstack/gommon/log"

	"fable/pkg/inference"
	"fable/pkg/queue/imagen"
	"fable/pkg/schema"
	"fable/pkg/server"
	"fable/pkg/tokenizer"
	"fable/pkg/utils"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	openAI := inference.NewOpenAIInferencer(apiKey, model)
	if apiKey == "" {
		openAI.ChangeBaseURL("http://localhost:1234/v1")
		openAI.SetModel("")
	}
	var inf inference.Inferencer = openAI

	if grokKey := os.Getenv("GROK_API_KEY"); grokKey != "" {
		inf = inference.NewGrokInferencer(grokKey, os.Getenv("GROK_MODEL"))
	}
	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey != "" {
		gemini, err := inference.NewGeminiInferencer(geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatal("failed creating Gemini inferencer", "error", err)
		}
		inf = gemini
	}

	tk := tokenizer.New(model)

	srv := server.NewServer(ctx, inf, tk)
	srv.Echo.Logger.SetLevel(gommon.DEBUG)

	if imagenKey := os.Getenv("GEMINI_API_KEY"); imagenKey != "" {
		q, err := imagen.New(ctx, imagenKey, os.Getenv("IMAGEN_MODEL"))
		if err != nil {
			log.Fatal("failed creating illustration queue", "error", err)
		}
		q.Start()
		defer q.Stop()
		srv.Queue = q
	} else {
		log.Warn("GEMINI_API_KEY not set, illustrations disabled")
	}

	if utils.Exists("Stories.json") {
		stories, err := utils.Load[map[string]schema.StoredStory]("Stories.json")
		if err != nil {
			log.Warn("failed to load Stories.json", "error", err)
		} else if stories != nil {
			srv.Stories = stories
			log.Info("loaded story library", "stories", len(stories))
		}
	}

	addr := ":8080"
	if envAddr := os.Getenv("PORT"); envAddr != "" {
		addr = ":" + envAddr
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("shutdown error", "error", err)
		}
		done()
		close(finishedShutDown)
	}()

	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
	}
	<-finishedShutDown
}
