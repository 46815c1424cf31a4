package context

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedding keeps similarity tests deterministic without a model: each
// document embeds to a vector derived from its length.
func fixedEmbedding(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r) / 1000
	}
	return v, nil
}

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	store, err := NewDocumentStore(DocumentStoreConfig{}, chromem.EmbeddingFunc(fixedEmbedding))
	require.NoError(t, err)
	return store
}

func seedNotes(t *testing.T, store *DocumentStore) {
	t.Helper()
	ctx := context.Background()
	notes := []Note{
		{Path: "notes/roadmap.md", Title: "Roadmap", Tags: []string{"planning"}, Content: "Q3 milestones and the launch plan.", ModifiedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{Path: "notes/standup.md", Title: "Standup", Tags: []string{"meetings"}, Content: "Discussed roadmap blockers.", ModifiedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{Path: "journal/2025.md", Title: "Old journal", Tags: nil, Content: "Last year's retrospective.", ModifiedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, note := range notes {
		require.NoError(t, store.Index(ctx, note))
	}
}

func TestSalientTerms(t *testing.T) {
	tags, links := salientTerms("what happened with #planning and [[Roadmap]] lately? #q3/launch")
	assert.Equal(t, []string{"planning", "q3/launch"}, tags)
	assert.Equal(t, []string{"Roadmap"}, links)

	tags, links = salientTerms("plain question")
	assert.Empty(t, tags)
	assert.Empty(t, links)
}

func TestExactMatchesTitleAndTags(t *testing.T) {
	store := newTestStore(t)
	seedNotes(t, store)

	docs := store.Exact([]string{"roadmap"}, nil, false, 10)
	require.NotEmpty(t, docs)
	assert.Equal(t, "Roadmap", docs[0].Title, "title match outranks tag match")

	docs = store.Exact([]string{"meetings"}, nil, false, 10)
	require.Len(t, docs, 1)
	assert.Equal(t, "Standup", docs[0].Title)
}

func TestExactTimeRange(t *testing.T) {
	store := newTestStore(t)
	seedNotes(t, store)

	recent := &TimeRange{From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	docs := store.Exact([]string{"roadmap"}, recent, false, 10)
	for _, doc := range docs {
		assert.NotEqual(t, "journal/2025.md", doc.Path)
	}
}

func TestRetrieveMergesExactFirst(t *testing.T) {
	store := newTestStore(t)
	seedNotes(t, store)

	r := NewRetriever(RetrieverConfig{}, store)
	result, err := r.Retrieve(context.Background(), "tell me about the Roadmap", nil)
	require.NoError(t, err)

	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "notes/roadmap.md", result.Sources[0].Path, "exact match leads")
	assert.Contains(t, result.ContextBlock, "<document>")
	assert.Contains(t, result.ContextBlock, "Available sources:")
	assert.False(t, result.Truncated)
}

func TestRetrieveTimeRangeSkipsSimilarity(t *testing.T) {
	store := newTestStore(t)
	seedNotes(t, store)

	r := NewRetriever(RetrieverConfig{}, store)
	recent := &TimeRange{From: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)}
	result, err := r.Retrieve(context.Background(), "what did I write about the roadmap", recent)
	require.NoError(t, err)

	// Only the exact pass ran; everything returned is in range.
	for _, source := range result.Sources {
		assert.Equal(t, "notes/standup.md", source.Path)
	}
}

func TestRetrieveCapsAndFlags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, store.Index(ctx, Note{
			Path:       fmt.Sprintf("notes/meeting-%d.md", i),
			Title:      fmt.Sprintf("Meeting %d", i),
			Content:    "meeting notes body",
			ModifiedAt: time.Now(),
		}))
	}

	r := NewRetriever(RetrieverConfig{MaxChunks: 3}, store)
	result, err := r.Retrieve(ctx, "meeting", nil)
	require.NoError(t, err)
	assert.Len(t, result.Sources, 3)
	assert.True(t, result.Truncated)
}

func TestRetrieveEmptyVault(t *testing.T) {
	store := newTestStore(t)
	r := NewRetriever(RetrieverConfig{}, store)

	result, err := r.Retrieve(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, result.ContextBlock)
	assert.Empty(t, result.Sources)
}
