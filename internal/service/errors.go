package service

import "errors"

var (
	ErrNoQuestion     = errors.New("no question provided")
	ErrEmptyAnswer    = errors.New("language model returned an empty answer")
	ErrEmptyEmbedding = errors.New("embedding service returned no vector")
	ErrNoDocuments    = errors.New("no documents to ingest")
)
