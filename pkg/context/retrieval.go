package context

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vaultpilot/vaultpilot/pkg/observability"
	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// RetrieverConfig bounds the QA retrieval step.
type RetrieverConfig struct {
	// MaxChunks caps how many documents reach the model. Zero means 12.
	MaxChunks int `yaml:"max_chunks,omitempty" json:"max_chunks,omitempty"`

	// SimilarityK is how many chunks the similarity pass requests. Zero
	// means 10.
	SimilarityK int `yaml:"similarity_k,omitempty" json:"similarity_k,omitempty"`
}

func (c *RetrieverConfig) SetDefaults() {
	if c.MaxChunks == 0 {
		c.MaxChunks = 12
	}
	if c.SimilarityK == 0 {
		c.SimilarityK = 10
	}
}

// RetrievalResult is the grounding context attached to a QA question.
type RetrievalResult struct {
	// ContextBlock is the document blocks plus citation instructions,
	// ready to attach to the user turn. Empty when nothing matched.
	ContextBlock string
	Sources      []tools.AgentSource
	Truncated    bool
}

// Retriever grounds retrieval-QA questions in vault notes.
type Retriever struct {
	cfg   RetrieverConfig
	store *DocumentStore
}

func NewRetriever(cfg RetrieverConfig, store *DocumentStore) *Retriever {
	cfg.SetDefaults()
	return &Retriever{cfg: cfg, store: store}
}

var tagTermPattern = regexp.MustCompile(`#([\p{L}\p{N}_/-]+)`)

// salientTerms pulls explicit #tags and [[wikilink]] targets out of the
// question; these drive the exact pass.
func salientTerms(question string) (tagTerms []string, linkTerms []string) {
	for _, match := range tagTermPattern.FindAllStringSubmatch(question, -1) {
		tagTerms = append(tagTerms, match[1])
	}
	for {
		start := strings.Index(question, "[[")
		if start < 0 {
			break
		}
		rest := question[start+2:]
		end := strings.Index(rest, "]]")
		if end < 0 {
			break
		}
		if term := strings.TrimSpace(rest[:end]); term != "" {
			linkTerms = append(linkTerms, term)
		}
		question = rest[end+2:]
	}
	return tagTerms, linkTerms
}

// Retrieve runs the two retrieval passes and merges them.
//
// The exact pass always runs, over the tag and link terms (falling back to
// the whole question when there are none); it returns all matches when
// explicit tag terms scope the question. The similarity pass is skipped when
// an explicit time range scopes retrieval. Exact matches rank ahead of
// similar ones, deduplicated by path, capped at MaxChunks.
func (r *Retriever) Retrieve(ctx context.Context, question string, timeRange *TimeRange) (*RetrievalResult, error) {
	tracer := observability.Tracer("vaultpilot/context")
	ctx, span := tracer.Start(ctx, observability.SpanRetrieval)
	defer span.End()

	tagTerms, linkTerms := salientTerms(question)
	exactTerms := append(append([]string{}, tagTerms...), linkTerms...)
	returnAll := len(tagTerms) > 0
	if len(exactTerms) == 0 {
		exactTerms = strings.Fields(question)
	}

	exact := r.store.Exact(exactTerms, timeRange, returnAll, r.cfg.MaxChunks)

	var similar []tools.SearchDocument
	if timeRange == nil {
		var err error
		similar, err = r.store.Similar(ctx, question, r.cfg.SimilarityK)
		if err != nil {
			return nil, fmt.Errorf("retrieval failed: %w", err)
		}
	}

	merged := make([]tools.SearchDocument, 0, len(exact)+len(similar))
	seen := make(map[string]bool)
	for _, doc := range append(exact, similar...) {
		key := strings.ToLower(doc.Path)
		if key == "" {
			key = strings.ToLower(doc.Title)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, doc)
	}

	truncated := false
	if len(merged) > r.cfg.MaxChunks {
		merged = merged[:r.cfg.MaxChunks]
		truncated = true
	}

	span.SetAttributes(attribute.Int("retrieval.documents", len(merged)))
	slog.Debug("Retrieved context", "question_terms", len(exactTerms), "documents", len(merged), "truncated", truncated)

	if len(merged) == 0 {
		return &RetrievalResult{}, nil
	}

	var b strings.Builder
	sources := make([]tools.AgentSource, 0, len(merged))
	for i, doc := range merged {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderDocumentBlock(doc.Title, doc.Path, doc.Content))
		sources = append(sources, tools.AgentSource{
			Title: doc.Title,
			Path:  doc.Path,
			Score: doc.Score,
		})
	}
	b.WriteString("\n\n")
	b.WriteString(citationInstructions(merged))

	return &RetrievalResult{
		ContextBlock: b.String(),
		Sources:      tools.DeduplicateSources(sources),
		Truncated:    truncated,
	}, nil
}

func citationInstructions(docs []tools.SearchDocument) string {
	names := make([]string, 0, len(docs))
	seen := make(map[string]bool)
	for _, doc := range docs {
		if doc.Title == "" || seen[doc.Title] {
			continue
		}
		seen[doc.Title] = true
		names = append(names, doc.Title)
	}
	return fmt.Sprintf(
		"Answer using only the documents above. When you draw on a document, cite it by title. Available sources: %s.",
		strings.Join(names, ", "),
	)
}
