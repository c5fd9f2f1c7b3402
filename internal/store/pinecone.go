package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/katakuxiko/agrochat/internal/model"
)

const (
	pineconeAPIVersion   = "2024-07"
	pineconeUpsertBatch  = 100
	defaultPineconeCtrl  = "https://api.pinecone.io"
	defaultPineconeLimit = 30 * time.Second
)

type PineconeConfig struct {
	APIKey    string
	IndexName string
	// Host is the data plane host of the index; resolved through the
	// control plane when empty.
	Host       string
	Namespace  string
	ControlURL string
	Timeout    time.Duration
}

// PineconeStore talks to the Pinecone data plane REST API.
type PineconeStore struct {
	client    *resty.Client
	namespace string
}

type pineconeVector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type pineconeUpsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

type pineconeIndexDescription struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

func NewPineconeStore(ctx context.Context, cfg PineconeConfig) (*PineconeStore, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPineconeLimit
	}
	host := cfg.Host
	if host == "" {
		if cfg.IndexName == "" {
			return nil, errors.New("pinecone: index name or host is required")
		}
		resolved, err := describeIndexHost(ctx, cfg)
		if err != nil {
			return nil, err
		}
		host = resolved
	}
	return &PineconeStore{
		client:    newPineconeClient(withScheme(host), cfg),
		namespace: cfg.Namespace,
	}, nil
}

func newPineconeClient(baseURL string, cfg PineconeConfig) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Api-Key", cfg.APIKey).
		SetHeader("X-Pinecone-API-Version", pineconeAPIVersion)
}

func describeIndexHost(ctx context.Context, cfg PineconeConfig) (string, error) {
	ctrl := cfg.ControlURL
	if ctrl == "" {
		ctrl = defaultPineconeCtrl
	}
	var desc pineconeIndexDescription
	resp, err := newPineconeClient(ctrl, cfg).R().
		SetContext(ctx).
		SetResult(&desc).
		ForceContentType("application/json").
		Get("/indexes/" + url.PathEscape(cfg.IndexName))
	if err != nil {
		return "", fmt.Errorf("pinecone: describe index: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("pinecone: describe index %s: status %d: %s", cfg.IndexName, resp.StatusCode(), resp.String())
	}
	if desc.Host == "" {
		return "", fmt.Errorf("pinecone: index %s has no host", cfg.IndexName)
	}
	return desc.Host, nil
}

func withScheme(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}

func (s *PineconeStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if err := checkChunks(chunks, 0); err != nil {
		return err
	}
	for start := 0; start < len(chunks); start += pineconeUpsertBatch {
		end := min(start+pineconeUpsertBatch, len(chunks))
		req := pineconeUpsertRequest{Namespace: s.namespace}
		for _, c := range chunks[start:end] {
			req.Vectors = append(req.Vectors, pineconeVector{
				ID:       c.ID,
				Values:   c.Embedding,
				Metadata: metadataOf(c),
			})
		}
		resp, err := s.client.R().SetContext(ctx).SetBody(req).Post("/vectors/upsert")
		if err != nil {
			return fmt.Errorf("pinecone: upsert: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("pinecone: upsert: status %d: %s", resp.StatusCode(), resp.String())
		}
	}
	return nil
}

func (s *PineconeStore) Query(ctx context.Context, vector []float32, k int) ([]model.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	var out pineconeQueryResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(pineconeQueryRequest{
			Vector:          vector,
			TopK:            k,
			IncludeMetadata: true,
			Namespace:       s.namespace,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/query")
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pinecone: query: status %d: %s", resp.StatusCode(), resp.String())
	}

	res := make([]model.Match, 0, len(out.Matches))
	for _, m := range out.Matches {
		res = append(res, matchFromMetadata(m.ID, m.Score, m.Metadata))
	}
	return res, nil
}

func (s *PineconeStore) Close() error {
	return nil
}
