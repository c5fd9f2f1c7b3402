package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/katakuxiko/agrochat/internal/logger"
	"github.com/katakuxiko/agrochat/internal/memory"
	"github.com/katakuxiko/agrochat/internal/metrics"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/katakuxiko/agrochat/internal/store"
	"github.com/katakuxiko/agrochat/internal/util"
)

const (
	ContextSeparator = "\n\n---\n\n"
	NoContext        = "No relevant context found."
)

const rewriteInstruction = `You are a query rewriting expert. Based on the provided chat history, rephrase the "Follow Up user Question" into a complete, standalone question that can be understood without the chat history.
Only output the rewritten question and nothing else.`

const answerInstruction = `%s
You will be given a context of relevant information and a user question.
Your task is to answer the user's question based ONLY on the provided context.

If the knowledge base context is missing or incomplete,
still provide **general best practices** and politely ask a follow-up question
to better guide the farmer.

IMPORTANT:
- Detect the language of the question first.
- Reply ONLY in the language of the question (for example English, Malayalam, Hindi or Tamil).
- Do NOT mix languages.

Context:
%s`

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type ChatModel interface {
	Complete(ctx context.Context, system string, turns []model.Turn) (string, error)
}

type RAGOptions struct {
	TopK             int
	HistoryTurns     int
	MaxContextTokens int
	RewriteFallback  bool
	Persona          string
}

// ChatResult is the outcome of one chat exchange. Crisis answers skip the
// pipeline and leave Rewritten, Context and Matches empty.
type ChatResult struct {
	Answer    string
	Crisis    bool
	Rewritten string
	Context   string
	Matches   []model.Match
}

type RAGService struct {
	embedder  Embedder
	index     store.VectorIndex
	llm       ChatModel
	memory    memory.Store
	guard     *Guard
	estimator TokenEstimator
	metrics   *metrics.Metrics
	opts      RAGOptions
}

type Option func(*RAGService)

func WithEstimator(e TokenEstimator) Option {
	return func(s *RAGService) { s.estimator = e }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RAGService) { s.metrics = m }
}

func NewRAGService(
	embedder Embedder,
	index store.VectorIndex,
	llm ChatModel,
	mem memory.Store,
	guard *Guard,
	opts RAGOptions,
	options ...Option,
) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if guard == nil {
		guard = NewGuard(nil)
	}
	s := &RAGService{
		embedder:  embedder,
		index:     index,
		llm:       llm,
		memory:    mem,
		guard:     guard,
		estimator: RuneEstimator{},
		opts:      opts,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Chat answers one question for a session. Memory is only written when the
// whole pipeline succeeds, and then with both turns at once.
func (s *RAGService) Chat(ctx context.Context, sessionID, question string) (ChatResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("session", sessionID)

	question = strings.TrimSpace(question)
	if question == "" {
		s.metrics.ObserveChat(metrics.OutcomeRejected, time.Since(start))
		return ChatResult{}, ErrNoQuestion
	}
	if s.guard.IsCrisis(question) {
		log.Warn("crisis keyword matched, returning safety message")
		s.metrics.ObserveChat(metrics.OutcomeCrisis, time.Since(start))
		return ChatResult{Answer: SafetyMessage, Crisis: true}, nil
	}

	res, err := s.chat(ctx, log, sessionID, question)
	if err != nil {
		s.metrics.ObserveChat(metrics.OutcomeError, time.Since(start))
		return ChatResult{}, err
	}
	s.metrics.ObserveChat(metrics.OutcomeOK, time.Since(start))
	log.Info("chat answered",
		"question", util.TruncateRunes(question, 80),
		"matches", len(res.Matches),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func (s *RAGService) chat(ctx context.Context, log logger.Logger, sessionID, question string) (ChatResult, error) {
	history, err := s.memory.History(ctx, sessionID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("memory error: %w", err)
	}
	history = memory.Window(history, s.opts.HistoryTurns)

	rewritten, err := s.Rewrite(ctx, question, history)
	if err != nil {
		if !s.opts.RewriteFallback {
			return ChatResult{}, err
		}
		log.Warn("query rewrite failed, using raw question", "error", err)
		rewritten = question
	}
	log.Debug("query rewritten", "rewritten", rewritten)

	matches, err := s.Retrieve(ctx, rewritten)
	if err != nil {
		return ChatResult{}, err
	}
	matches = s.fitBudget(matches)

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	contextText := AssembleContext(texts)

	answer, err := s.Answer(ctx, rewritten, contextText, history)
	if err != nil {
		return ChatResult{}, err
	}

	if err := s.memory.Append(ctx, sessionID,
		model.Turn{Role: model.RoleUser, Content: question},
		model.Turn{Role: model.RoleAssistant, Content: answer},
	); err != nil {
		return ChatResult{}, fmt.Errorf("memory error: %w", err)
	}

	return ChatResult{
		Answer:    answer,
		Rewritten: rewritten,
		Context:   contextText,
		Matches:   matches,
	}, nil
}

// Rewrite turns a follow-up question into a standalone one using the
// conversation so far. A blank rewrite yields the question unchanged.
func (s *RAGService) Rewrite(ctx context.Context, question string, history []model.Turn) (string, error) {
	turns := make([]model.Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, model.Turn{Role: model.RoleUser, Content: question})

	out, err := s.llm.Complete(ctx, rewriteInstruction, turns)
	if err != nil {
		return "", fmt.Errorf("rewrite error: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return question, nil
	}
	return out, nil
}

// Retrieve embeds query and returns the nearest chunks in index order.
func (s *RAGService) Retrieve(ctx context.Context, query string) ([]model.Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding error: %w", err)
	}
	matches, err := s.index.Query(ctx, vec, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("search error: %w", err)
	}
	return matches, nil
}

// Answer asks the model for the final reply under the context instruction.
func (s *RAGService) Answer(ctx context.Context, question, contextText string, history []model.Turn) (string, error) {
	turns := make([]model.Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, model.Turn{Role: model.RoleUser, Content: question})

	answer, err := s.llm.Complete(ctx, AnswerInstruction(s.opts.Persona, contextText), turns)
	if err != nil {
		return "", fmt.Errorf("llm error: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("llm error: %w", ErrEmptyAnswer)
	}
	return answer, nil
}

// fitBudget drops trailing matches while the context exceeds
// MaxContextTokens, keeping at least one.
func (s *RAGService) fitBudget(matches []model.Match) []model.Match {
	if s.opts.MaxContextTokens <= 0 || len(matches) <= 1 {
		return matches
	}
	total := 0
	for _, m := range matches {
		total += s.estimator.Count(m.Text)
	}
	for len(matches) > 1 && total > s.opts.MaxContextTokens {
		total -= s.estimator.Count(matches[len(matches)-1].Text)
		matches = matches[:len(matches)-1]
	}
	return matches
}

// AssembleContext joins the non-blank texts in order. With nothing left it
// returns NoContext.
func AssembleContext(texts []string) string {
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return NoContext
	}
	return strings.Join(kept, ContextSeparator)
}

func AnswerInstruction(persona, contextText string) string {
	return fmt.Sprintf(answerInstruction, persona, contextText)
}
