// Package qa answers questions about a leaflet from its vector index with a
// grounded language model prompt and page citations.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/metrics"
	"github.com/giygas/leaflet-api/vectorindex"
)

var _ interfaces.QuestionAnswerer = (*Answerer)(nil)

// Answerer retrieves diverse chunks and asks the chat model to answer from them only
type Answerer struct {
	chat        model.BaseChatModel
	retrieval   vectorindex.MMROptions
	temperature float32
	language    string
}

// Option configures an Answerer
type Option func(*Answerer)

// WithRetrieval sets K, fetch pool and lambda of the MMR selection
func WithRetrieval(opts vectorindex.MMROptions) Option {
	return func(a *Answerer) { a.retrieval = opts }
}

// WithTemperature sets the sampling temperature sent with every request
func WithTemperature(t float32) Option {
	return func(a *Answerer) { a.temperature = t }
}

// WithDefaultLanguage sets the catalog used when a call does not pick one
func WithDefaultLanguage(lang string) Option {
	return func(a *Answerer) { a.language = NormalizeLanguage(lang) }
}

// NewAnswerer creates an answerer. chat may be nil, every answer then fails softly.
func NewAnswerer(chat model.BaseChatModel, opts ...Option) *Answerer {
	a := &Answerer{
		chat: chat,
		retrieval: vectorindex.MMROptions{
			K:      vectorindex.DefaultK,
			FetchK: vectorindex.DefaultFetchK,
			Lambda: vectorindex.DefaultLambda,
		},
		language: DefaultLanguage,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Answer never returns an error: failures produce the localized apology with
// Success false, an empty index produces the not-found text without calling the model.
func (a *Answerer) Answer(ctx context.Context, index *vectorindex.Index, question string, opts ...interfaces.AnswerOption) entities.AnsweredQuestion {
	settings := interfaces.AnswerSettings{Language: a.language}
	for _, opt := range opts {
		opt(&settings)
	}
	msgs := catalogFor(settings.Language)

	result := entities.AnsweredQuestion{
		Question:       question,
		CitedPages:     []int{},
		MentionedPages: []int{},
	}

	if index.Len() == 0 {
		result.AnswerText = msgs.NotFound + " " + msgs.Consult
		result.Status = entities.AnswerStatusNoContent
		result.Success = true
		metrics.AnswerTotal.WithLabelValues(string(result.Status)).Inc()
		return result
	}

	chunks, err := index.MaxMarginalRelevance(ctx, question, a.retrieval)
	if err != nil {
		return a.fail(result, msgs, &apperrors.AnsweringFailure{Stage: "retrieve", Err: err})
	}

	if a.chat == nil {
		return a.fail(result, msgs, &apperrors.AnsweringFailure{Stage: "generate", Err: errors.New(msgs.Unconfigured)})
	}

	messages, err := chatTemplateFor(settings.Language).Format(ctx, map[string]any{
		"context":  BuildContext(chunks, msgs.PageLabel),
		"question": question,
	})
	if err != nil {
		return a.fail(result, msgs, &apperrors.AnsweringFailure{Stage: "prompt", Err: err})
	}

	resp, err := a.chat.Generate(ctx, messages, model.WithTemperature(a.temperature))
	if err != nil {
		return a.fail(result, msgs, &apperrors.AnsweringFailure{Stage: "generate", Err: err})
	}

	answer := ""
	if resp != nil {
		answer = strings.TrimSpace(resp.Content)
	}
	if answer == "" {
		return a.fail(result, msgs, &apperrors.AnsweringFailure{Stage: "generate", Err: errors.New("empty completion")})
	}

	result.AnswerText = answer
	result.CitedPages = CitedPages(chunks)
	result.MentionedPages = ParsePageReferences(answer)
	result.SourceChunks = chunks
	result.Status = entities.AnswerStatusAnswered
	result.Success = true

	metrics.AnswerTotal.WithLabelValues(string(result.Status)).Inc()
	logging.Debug("Question answered",
		"chunks", len(chunks),
		"cited_pages", result.CitedPages,
		"mentioned_pages", result.MentionedPages)

	return result
}

func (a *Answerer) fail(result entities.AnsweredQuestion, msgs catalog, err error) entities.AnsweredQuestion {
	result.AnswerText = msgs.Apology
	result.Status = entities.AnswerStatusFailed
	result.Success = false
	result.Error = err.Error()

	metrics.AnswerTotal.WithLabelValues(string(result.Status)).Inc()
	logging.Warn("Answering failed", "error", err)
	return result
}

// BuildContext joins chunks in retrieval order, each prefixed with its page label
func BuildContext(chunks []entities.LeafletChunk, pageLabel string) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s %d]\n%s", pageLabel, c.PageNumber, c.Text)
	}
	return b.String()
}
