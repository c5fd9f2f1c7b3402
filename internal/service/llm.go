package service

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/katakuxiko/agrochat/internal/config"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/sashabaranov/go-openai"
)

// LLMClient talks to an OpenAI-compatible endpoint (Gemini, LM Studio,
// OpenAI) for both embeddings and chat completions.
type LLMClient struct {
	client      *openai.Client
	embedName   string
	chatName    string
	temperature float32
	cache       *lru.Cache[string, []float32]
}

// NewLLMClient создаёт новый клиент с настройками из config
func NewLLMClient(cfg *config.Config) (*LLMClient, error) {
	oaiCfg := openai.DefaultConfig(cfg.LMAPIKey)
	oaiCfg.BaseURL = strings.TrimRight(cfg.LMBaseURL, "/")

	l := &LLMClient{
		client:      openai.NewClientWithConfig(oaiCfg),
		embedName:   cfg.EmbedModel,
		chatName:    cfg.ChatModel,
		temperature: cfg.Temperature,
	}
	if cfg.EmbedCacheSize > 0 {
		cache, err := lru.New[string, []float32](cfg.EmbedCacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		l.cache = cache
	}
	return l, nil
}

// Embed returns the embedding of text, served from the cache when possible.
func (l *LLMClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if l.cache != nil {
		if v, ok := l.cache.Get(text); ok {
			return v, nil
		}
	}
	vecs, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Add(text, vecs[0])
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, preserving order.
func (l *LLMClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := l.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(l.embedName),
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyEmbedding, len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || len(d.Embedding) == 0 {
			return nil, ErrEmptyEmbedding
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Complete runs one chat completion: system instruction, then turns in order.
func (l *LLMClient) Complete(ctx context.Context, system string, turns []model.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.chatName,
		Messages:    msgs,
		Temperature: l.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ListModels returns the model IDs the endpoint exposes.
func (l *LLMClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
