package service

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenEstimator approximates how many model tokens a text costs.
type TokenEstimator interface {
	Count(text string) int
}

// RuneEstimator assumes four runes per token.
type RuneEstimator struct{}

func (RuneEstimator) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// TiktokenEstimator counts with a BPE encoding.
type TiktokenEstimator struct {
	tke *tiktoken.Tiktoken
}

func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{tke: tke}, nil
}

func (e *TiktokenEstimator) Count(text string) int {
	return len(e.tke.Encode(text, nil, nil))
}

// NewEstimator prefers tiktoken and falls back to RuneEstimator when the
// encoding cannot be loaded (it is fetched on first use).
func NewEstimator() TokenEstimator {
	if e, err := NewTiktokenEstimator(defaultEncoding); err == nil {
		return e
	}
	return RuneEstimator{}
}
