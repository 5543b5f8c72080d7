// Package embedder wraps pluggable embedding providers behind one gateway.
// Embedding is best-effort everywhere it is used: callers must treat
// ErrUnavailable as a degraded path, never as a failed exchange.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	arkembed "github.com/cloudwego/eino-ext/components/embedding/ark"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/hoaquangthang/a-seed/backend/internal/config"
)

// ErrUnavailable reports that the embedding provider is unreachable or
// returned malformed output.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Provider converts text into a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the provider named by the configuration.
func New(ctx context.Context, cfg config.EmbeddingConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ark":
		return newArkProvider(ctx, cfg)
	case "gemini":
		return newGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// arkProvider adapts the eino ark embedder, the sibling of the chat model the
// generation service already runs on.
type arkProvider struct {
	embedder embedding.Embedder
}

func newArkProvider(ctx context.Context, cfg config.EmbeddingConfig) (*arkProvider, error) {
	emb, err := arkembed.NewEmbedder(ctx, &arkembed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Region:  cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark embedder: %w", err)
	}
	return &arkProvider{embedder: emb}, nil
}

func (p *arkProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *arkProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrUnavailable, len(vecs), len(texts))
	}
	out := make([][]float32, len(vecs))
	for i, vec := range vecs {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", ErrUnavailable, i)
		}
		out[i] = toFloat32(vec)
	}
	return out, nil
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}

// geminiProvider is the alternative backend for deployments keyed to Google's
// embedding models.
type geminiProvider struct {
	client    *genai.Client
	modelName string
}

func newGeminiProvider(ctx context.Context, cfg config.EmbeddingConfig) (*geminiProvider, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	return &geminiProvider{client: cl, modelName: model}, nil
}

func (p *geminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *geminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := p.client.EmbeddingModel(p.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrUnavailable, len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrUnavailable, i)
		}
		out = append(out, e.Values)
	}
	return out, nil
}
