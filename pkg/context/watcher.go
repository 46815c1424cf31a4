package context

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// VaultWatcher keeps the document store in sync with the vault directory:
// an initial full walk, then incremental re-indexing on file events.
type VaultWatcher struct {
	root    string
	store   *DocumentStore
	watcher *fsnotify.Watcher
}

func NewVaultWatcher(root string, store *DocumentStore) (*VaultWatcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root '%s' is not a directory", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &VaultWatcher{root: root, store: store, watcher: watcher}, nil
}

// IndexAll walks the vault once and indexes every markdown note.
func (w *VaultWatcher) IndexAll(ctx context.Context) error {
	count := 0
	err := filepath.WalkDir(w.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != w.root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		if !isNoteFile(path) {
			return nil
		}
		if err := w.indexFile(ctx, path); err != nil {
			slog.Warn("Failed to index note", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("vault walk failed: %w", err)
	}

	slog.Info("Indexed vault", "root", w.root, "notes", count)
	return nil
}

// Watch processes file events until ctx is cancelled.
func (w *VaultWatcher) Watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Vault watcher error", "error", err)
		}
	}
}

func (w *VaultWatcher) Close() error {
	return w.watcher.Close()
}

func (w *VaultWatcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watcher.Add(event.Name)
			return
		}
		if !isNoteFile(event.Name) {
			return
		}
		if err := w.indexFile(ctx, event.Name); err != nil {
			slog.Warn("Failed to re-index note", "path", event.Name, "error", err)
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if !isNoteFile(event.Name) {
			return
		}
		if rel, err := filepath.Rel(w.root, event.Name); err == nil {
			if err := w.store.Remove(ctx, filepath.ToSlash(rel)); err != nil {
				slog.Warn("Failed to drop note from index", "path", event.Name, "error", err)
			}
		}
	}
}

func (w *VaultWatcher) indexFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return err
	}

	note := Note{
		Path:       filepath.ToSlash(rel),
		Content:    string(content),
		ModifiedAt: info.ModTime(),
	}
	note.Title, note.Tags = parseFrontmatter(note.Content)
	if note.Title == "" {
		note.Title = titleFromPath(note.Path)
	}
	return w.store.Index(ctx, note)
}

func isNoteFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

// parseFrontmatter pulls title and tags out of a YAML frontmatter block. The
// parse is line-oriented; full YAML is not needed for these two keys.
func parseFrontmatter(content string) (title string, tags []string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", nil
	}
	end := strings.Index(content[4:], "\n---")
	if end < 0 {
		return "", nil
	}

	for _, line := range strings.Split(content[4:4+end], "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "title":
			title = strings.Trim(value, `"'`)
		case "tags":
			value = strings.Trim(value, "[]")
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(strings.Trim(strings.TrimSpace(tag), `"'#`)); tag != "" {
					tags = append(tags, tag)
				}
			}
		}
	}
	return title, tags
}
