// Package imagen queues illustration generation against the Gemini Imagen
// API. Requests are processed in small batches with a rate limiter between
// calls so the external API's limits are respected, and results are cached by
// prompt so retried generations are free.
package imagen

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"fable/pkg/schema"
)

const (
	defaultModel = "imagen-3.0-generate-002"

	// batchSize and the limiter pace calls to stay under the image API's
	// rate limits.
	batchSize  = 2
	batchDelay = 2 * time.Second

	cacheTTL = 30 * time.Minute
)

type Queue struct {
	client *genai.Client
	model  string
	stop   chan struct{}
	items  chan *Item

	limiter *rate.Limiter
	cache   *gocache.Cache
}

type Item struct {
	Request  *schema.ImageRequest
	Response chan []io.Reader
	Error    chan error
}

func New(ctx context.Context, apiKey, model string) (*Queue, error) {
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &Queue{
		client:  client,
		model:   model,
		items:   make(chan *Item, 100),
		stop:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Every(batchDelay), batchSize),
		cache:   gocache.New(cacheTTL, cacheTTL),
	}, nil
}

func (q *Queue) Start() {
	go q.processLoop()
}

func (q *Queue) Stop() {
	close(q.stop)
}

func (q *Queue) Add(req *schema.ImageRequest) (chan []io.Reader, chan error, error) {
	respCh := make(chan []io.Reader, 1)
	errCh := make(chan error, 1)

	select {
	case q.items <- &Item{
		Request:  req,
		Response: respCh,
		Error:    errCh,
	}:
		return respCh, errCh, nil
	default:
		return nil, nil, errors.New("queue is full")
	}
}

func (q *Queue) processLoop() {
	log.Info("illustration queue started", "model", q.model)
	for {
		batch := q.nextBatch()
		if batch == nil {
			log.Info("illustration queue stopped")
			return
		}
		q.processBatch(batch)
	}
}

// nextBatch blocks for the first item, then drains up to batchSize-1 more
// without waiting. Returns nil when the queue is stopped.
func (q *Queue) nextBatch() []*Item {
	var batch []*Item
	select {
	case <-q.stop:
		return nil
	case item := <-q.items:
		batch = append(batch, item)
	}
	for len(batch) < batchSize {
		select {
		case item := <-q.items:
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

func (q *Queue) processBatch(batch []*Item) {
	var g errgroup.Group
	for _, item := range batch {
		g.Go(func() error {
			q.processItem(item)
			return nil
		})
	}
	_ = g.Wait()
}

func (q *Queue) processItem(item *Item) {
	req := item.Request

	if cached, ok := q.cache.Get(req.Prompt); ok {
		if data, ok := cached.([][]byte); ok {
			log.Debug("illustration cache hit", "story", req.StoryID, "paragraph", req.ParagraphIndex)
			item.Response <- readers(data)
			close(item.Error)
			return
		}
	}

	ctx := context.Background()
	if err := q.limiter.Wait(ctx); err != nil {
		item.Error <- err
		close(item.Response)
		return
	}

	log.Info("generating illustration", "story", req.StoryID, "paragraph", req.ParagraphIndex)

	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	}
	if req.AspectRatio != "" {
		config.AspectRatio = req.AspectRatio
	}

	resp, err := q.client.Models.GenerateImages(ctx, q.model, req.Prompt, config)
	if err != nil {
		log.Error("illustration generation failed", "story", req.StoryID, "paragraph", req.ParagraphIndex, "error", err)
		item.Error <- err
		close(item.Response)
		return
	}
	if len(resp.GeneratedImages) == 0 {
		item.Error <- errors.New("no images generated")
		close(item.Response)
		return
	}

	data := make([][]byte, 0, len(resp.GeneratedImages))
	for _, img := range resp.GeneratedImages {
		if img.Image != nil && len(img.Image.ImageBytes) > 0 {
			data = append(data, img.Image.ImageBytes)
		}
	}
	if len(data) == 0 {
		item.Error <- errors.New("empty image payload")
		close(item.Response)
		return
	}

	q.cache.Set(req.Prompt, data, gocache.DefaultExpiration)

	item.Response <- readers(data)
	close(item.Error)
}

func readers(data [][]byte) []io.Reader {
	out := make([]io.Reader, len(data))
	for i, d := range data {
		out[i] = bytes.NewReader(d)
	}
	return out
}
