package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
	"github.com/salesmind/ragcore/internal/logger"
)

// Generation defaults.
const (
	// DefaultMaxContextResults caps how many retrieval hits feed the prompt.
	DefaultMaxContextResults = 5

	// DefaultMaxAnswerTokens bounds the primary completion.
	DefaultMaxAnswerTokens = 1024

	// DefaultTemperature keeps grounded answers close to the context.
	DefaultTemperature = 0.2

	// sideOutputTimeout bounds the best-effort extraction call.
	sideOutputTimeout = 10 * time.Second
)

// Confidence heuristic parameters.
const (
	confidenceBase      = 0.5
	lengthBonus         = 0.1
	lengthBonusAt       = 200
	longLengthBonusAt   = 500
	overlapBonusMax     = 0.3
	hedgePenalty        = 0.1
	confidenceFloor     = 0.1
	confidenceCeiling   = 0.95
	overlapMinWordRunes = 4
)

// hedgePhrases lower confidence when they appear in an answer.
var hedgePhrases = []string{
	"i'm not sure",
	"i am not sure",
	"i don't know",
	"it's unclear",
	"it is unclear",
	"cannot determine",
	"it depends",
	"hard to say",
	"might be",
	"possibly",
}

// Generator synthesises grounded answers from retrieved context through
// a single, statically configured language model provider.
type Generator struct {
	llm         driven.LLMService
	maxContext  int
	maxTokens   int
	temperature float64
	retryDelay  time.Duration
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMaxContextResults caps how many results feed the prompt.
func WithMaxContextResults(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxContext = n
		}
	}
}

// WithMaxAnswerTokens bounds the completion length.
func WithMaxAnswerTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// WithGenerateRetryDelay sets the backoff before the throttle retry.
func WithGenerateRetryDelay(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.retryDelay = d
		}
	}
}

// NewGenerator creates a Generator around an LLM provider.
func NewGenerator(llm driven.LLMService, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:         llm,
		maxContext:  DefaultMaxContextResults,
		maxTokens:   DefaultMaxAnswerTokens,
		temperature: DefaultTemperature,
		retryDelay:  DefaultThrottleRetryDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a grounded answer for the generation context.
func (g *Generator) Generate(ctx context.Context, gc domain.GenerationContext) (*domain.Answer, error) {
	logger.Section("Generation")

	query := strings.TrimSpace(gc.Query)
	if query == "" {
		return nil, domain.NewStageError(domain.StageGenerate,
			fmt.Errorf("%w: query is empty", domain.ErrValidation))
	}

	top := gc.Results
	if len(top) > g.maxContext {
		top = top[:g.maxContext]
	}

	prompt := buildPrompt(query, top, gc.Format)
	system := systemFraming(gc.Sales)

	logger.Debug("Generating with %d context snippets via %s", len(top), g.llm.ModelName())

	text, err := g.generateOnce(ctx, prompt, driven.GenerateOptions{
		System:      system,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return nil, domain.NewStageError(domain.StageGenerate, err)
	}
	text = strings.TrimSpace(text)

	answer := &domain.Answer{
		Text:       text,
		Confidence: confidence(text, top),
		Sources:    citedSources(text, top),
	}

	if gc.Sales != nil {
		g.extractSideOutputs(ctx, answer, gc)
	}

	logger.Info("Generated answer: %d chars, confidence %.2f, %d sources",
		len(answer.Text), answer.Confidence, len(answer.Sources))
	return answer, nil
}

// generateOnce dispatches the prompt, retrying exactly once on throttling.
func (g *Generator) generateOnce(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	text, err := g.llm.Generate(ctx, prompt, opts)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, domain.ErrProviderThrottled) {
		return "", fmt.Errorf("generate: %w", err)
	}

	logger.Warn("Generation provider throttled, retrying in %s", g.retryDelay)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(g.retryDelay):
	}

	text, err = g.llm.Generate(ctx, prompt, opts)
	if err != nil {
		return "", fmt.Errorf("generate after retry: %w", err)
	}
	return text, nil
}

// buildPrompt assembles the context snippets and the query into the
// user-facing part of the three-part prompt.
func buildPrompt(query string, results []domain.SearchResult, format domain.OutputFormat) string {
	var b strings.Builder

	if len(results) > 0 {
		b.WriteString("Context:\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, r.Document.Title, r.Chunk.Content)
		}
	} else {
		b.WriteString("Context: no relevant documents were found.\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", query)
	b.WriteString(formatInstruction(format))

	return b.String()
}

func formatInstruction(format domain.OutputFormat) string {
	switch format {
	case domain.FormatBullets:
		return "Answer as a concise bullet list.\n"
	case domain.FormatEmail:
		return "Answer as a short, professional email body.\n"
	default:
		return "Answer in plain prose.\n"
	}
}

// systemFraming builds the role framing, folding in the sales context
// tone hints when present.
func systemFraming(sales *domain.SalesContext) string {
	var b strings.Builder
	b.WriteString("You are a sales knowledge assistant. " +
		"Answer strictly from the provided context. " +
		"If the context does not contain the answer, say so.")

	if sales == nil {
		return b.String()
	}
	if sales.DealStage != "" {
		fmt.Fprintf(&b, " The deal is in the %s stage.", sales.DealStage)
	}
	if sales.CustomerSegment != "" {
		fmt.Fprintf(&b, " The customer is in the %s segment.", sales.CustomerSegment)
	}
	if sales.CommunicationStyle != "" {
		fmt.Fprintf(&b, " Use a %s tone.", sales.CommunicationStyle)
	}
	if sales.ResponseType != "" {
		fmt.Fprintf(&b, " Keep the response %s.", sales.ResponseType)
	}
	return b.String()
}

// confidence computes the heuristic confidence of an answer against its
// context, clamped to [0.1, 0.95].
func confidence(answer string, results []domain.SearchResult) float64 {
	score := confidenceBase

	// Length bonuses are in characters, not bytes.
	length := utf8.RuneCountInString(answer)
	if length > lengthBonusAt {
		score += lengthBonus
	}
	if length > longLengthBonusAt {
		score += lengthBonus
	}

	score += overlapBonusMax * lexicalOverlap(answer, results)

	lower := strings.ToLower(answer)
	for _, phrase := range hedgePhrases {
		if strings.Contains(lower, phrase) {
			score -= hedgePenalty
		}
	}

	if score < confidenceFloor {
		score = confidenceFloor
	}
	if score > confidenceCeiling {
		score = confidenceCeiling
	}
	return score
}

// lexicalOverlap returns the fraction of significant answer words that
// also occur in the context.
func lexicalOverlap(answer string, results []domain.SearchResult) float64 {
	contextWords := make(map[string]bool)
	for _, r := range results {
		for _, w := range significantWords(r.Chunk.Content) {
			contextWords[w] = true
		}
	}
	if len(contextWords) == 0 {
		return 0
	}

	words := significantWords(answer)
	if len(words) == 0 {
		return 0
	}

	matched := 0
	for _, w := range words {
		if contextWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(words))
}

// significantWords lower-cases and keeps words longer than three
// characters, stripped of surrounding punctuation.
func significantWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if len([]rune(f)) >= overlapMinWordRunes {
			out = append(out, f)
		}
	}
	return out
}

// citedSources lists the context chunks the answer shares vocabulary
// with. When the answer overlaps nothing, all context chunks are listed
// since they still framed the generation.
func citedSources(answer string, results []domain.SearchResult) []domain.Source {
	answerWords := make(map[string]bool)
	for _, w := range significantWords(answer) {
		answerWords[w] = true
	}

	var cited []domain.Source
	for _, r := range results {
		for _, w := range significantWords(r.Chunk.Content) {
			if answerWords[w] {
				cited = append(cited, domain.Source{
					DocumentID: r.Document.ID,
					ChunkID:    r.Chunk.ID,
					Title:      r.Document.Title,
				})
				break
			}
		}
	}
	if cited != nil {
		return cited
	}

	all := make([]domain.Source, 0, len(results))
	for _, r := range results {
		all = append(all, domain.Source{
			DocumentID: r.Document.ID,
			ChunkID:    r.Chunk.ID,
			Title:      r.Document.Title,
		})
	}
	return all
}

// extractSideOutputs runs the best-effort extraction pass for next
// steps, objections and upsell hints. It never fails the answer: any
// provider error is logged and the fields stay empty.
func (g *Generator) extractSideOutputs(ctx context.Context, answer *domain.Answer, gc domain.GenerationContext) {
	sideCtx, cancel := context.WithTimeout(ctx, sideOutputTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Given this sales question and answer, list follow-up items.\n\n"+
			"Question: %s\n\nAnswer: %s\n\n"+
			"Respond with one item per line, each prefixed with exactly one of "+
			"NEXT:, OBJECTION: or UPSELL:. Output nothing else.",
		gc.Query, answer.Text)

	text, err := g.llm.Generate(sideCtx, prompt, driven.GenerateOptions{
		System:      "You extract sales follow-ups from conversations.",
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("Side-output extraction failed: %v", err)
		return
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "NEXT:"):
			answer.NextSteps = append(answer.NextSteps, strings.TrimSpace(strings.TrimPrefix(line, "NEXT:")))
		case strings.HasPrefix(line, "OBJECTION:"):
			answer.Objections = append(answer.Objections, strings.TrimSpace(strings.TrimPrefix(line, "OBJECTION:")))
		case strings.HasPrefix(line, "UPSELL:"):
			answer.UpsellHints = append(answer.UpsellHints, strings.TrimSpace(strings.TrimPrefix(line, "UPSELL:")))
		}
	}
}
