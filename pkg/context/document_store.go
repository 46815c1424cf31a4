// Package context prepares everything a model call needs: the vault document
// store, retrieval, mode detection, token budgeting, and message assembly.
package context

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/vaultpilot/vaultpilot/pkg/tools"
)

// Note is one vault note as the indexer sees it.
type Note struct {
	Path       string
	Title      string
	Tags       []string
	Content    string
	ModifiedAt time.Time
}

// TimeRange scopes exact retrieval to notes modified inside it.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r *TimeRange) contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// DocumentStoreConfig configures the vault index.
type DocumentStoreConfig struct {
	// PersistPath stores vectors on disk; empty means in-memory only.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`

	// ChunkSize caps chunk length in runes. Zero means 1200.
	ChunkSize int `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
}

func (c *DocumentStoreConfig) SetDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1200
	}
}

const collectionName = "vault-notes"

// DocumentStore indexes vault notes for similarity search (chromem) and
// keeps note metadata in memory for exact matching over titles and tags.
type DocumentStore struct {
	cfg        DocumentStoreConfig
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.RWMutex
	notes map[string]Note
}

// NewDocumentStore opens or creates the vault index. The embedding function
// is required; similarity search goes through it.
func NewDocumentStore(cfg DocumentStoreConfig, embed chromem.EmbeddingFunc) (*DocumentStore, error) {
	cfg.SetDefaults()
	if embed == nil {
		return nil, fmt.Errorf("embedding function is required")
	}

	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			slog.Warn("Failed to load vector database, starting fresh", "path", cfg.PersistPath, "error", err)
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	return &DocumentStore{
		cfg:        cfg,
		db:         db,
		collection: collection,
		notes:      make(map[string]Note),
	}, nil
}

// Index adds or refreshes one note. The previous chunks of the note are
// replaced.
func (s *DocumentStore) Index(ctx context.Context, note Note) error {
	if note.Path == "" {
		return fmt.Errorf("note path is required")
	}
	if note.Title == "" {
		note.Title = titleFromPath(note.Path)
	}

	if err := s.Remove(ctx, note.Path); err != nil {
		return err
	}

	chunks := chunkContent(note.Content, s.cfg.ChunkSize)
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s#%d", note.Path, i),
			Content: chunk,
			Metadata: map[string]string{
				"title": note.Title,
				"path":  note.Path,
				"tags":  strings.Join(note.Tags, ","),
				"mtime": note.ModifiedAt.UTC().Format(time.RFC3339),
			},
		})
	}
	if len(docs) > 0 {
		if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
			return fmt.Errorf("failed to index note '%s': %w", note.Path, err)
		}
	}

	s.mu.Lock()
	s.notes[note.Path] = note
	s.mu.Unlock()

	slog.Debug("Indexed note", "path", note.Path, "chunks", len(chunks))
	return nil
}

// Remove drops a note and its chunks from the index.
func (s *DocumentStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	existing, known := s.notes[path]
	delete(s.notes, path)
	s.mu.Unlock()

	if !known {
		return nil
	}

	chunks := chunkContent(existing.Content, s.cfg.ChunkSize)
	for i := range chunks {
		id := fmt.Sprintf("%s#%d", path, i)
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("failed to remove note '%s': %w", path, err)
		}
	}
	return nil
}

// Count reports how many notes are indexed.
func (s *DocumentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Similar runs a semantic search over note chunks.
func (s *DocumentStore) Similar(ctx context.Context, query string, k int) ([]tools.SearchDocument, error) {
	if k <= 0 {
		k = 10
	}
	if n := s.collection.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	docs := make([]tools.SearchDocument, 0, len(results))
	for _, result := range results {
		docs = append(docs, tools.SearchDocument{
			Title:   result.Metadata["title"],
			Path:    result.Metadata["path"],
			Content: result.Content,
			Score:   float64(result.Similarity),
		})
	}
	return docs, nil
}

// Search implements the vault_search tool contract.
func (s *DocumentStore) Search(ctx context.Context, query string, limit int) ([]tools.SearchDocument, error) {
	return s.Similar(ctx, query, limit)
}

// Exact matches notes whose title or tags contain any of the terms,
// case-insensitively, optionally restricted to a modification time range.
// With returnAll every match is returned; otherwise matches are capped at
// limit, best title matches first.
func (s *DocumentStore) Exact(terms []string, timeRange *TimeRange, returnAll bool, limit int) []tools.SearchDocument {
	if limit <= 0 {
		limit = 10
	}

	lowered := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			lowered = append(lowered, term)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc   tools.SearchDocument
		score float64
	}
	var matches []scored

	for _, note := range s.notes {
		if !timeRange.contains(note.ModifiedAt) {
			continue
		}

		score := 0.0
		if len(lowered) == 0 {
			// A pure time-range query matches on recency alone.
			if timeRange == nil {
				continue
			}
			score = 1.0
		} else {
			title := strings.ToLower(note.Title)
			tags := strings.ToLower(strings.Join(note.Tags, ","))
			for _, term := range lowered {
				if strings.Contains(title, term) {
					score += 2
				}
				if strings.Contains(tags, term) {
					score += 1
				}
			}
			if score == 0 {
				continue
			}
		}

		matches = append(matches, scored{
			doc: tools.SearchDocument{
				Title:   note.Title,
				Path:    note.Path,
				Content: note.Content,
				Score:   score,
			},
			score: score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if !returnAll && len(matches) > limit {
		matches = matches[:limit]
	}

	docs := make([]tools.SearchDocument, 0, len(matches))
	for _, match := range matches {
		docs = append(docs, match.doc)
	}
	return docs
}

func titleFromPath(path string) string {
	base := path
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	return strings.TrimSuffix(base, ".md")
}

// chunkContent splits note text on blank lines, merging paragraphs until the
// chunk size is reached. Oversized paragraphs are split hard.
func chunkContent(content string, size int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	paragraphs := strings.Split(content, "\n\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len([]rune(para)) > size {
			runes := []rune(para)
			flush()
			chunks = append(chunks, string(runes[:size]))
			para = string(runes[size:])
		}

		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(para))+2 > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}
