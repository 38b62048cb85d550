// Package ingest runs the indexing pipeline: load a document, clean and
// structure its text, chunk it, and embed the chunks into the knowledge
// store. A file lock keeps concurrent ingest runs from interleaving
// deletes and upserts for the same source.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/studyforge/studyai/internal/chunker"
	"github.com/studyforge/studyai/internal/document"
	"github.com/studyforge/studyai/internal/knowledge"
	"github.com/studyforge/studyai/internal/log"
)

// ErrLocked is returned when another ingest run holds the lock.
var ErrLocked = errors.New("another ingest is already running")

// Store is the part of knowledge.Store ingestion needs.
type Store interface {
	AddBatch(ctx context.Context, chunks []knowledge.Chunk) error
	DeleteSource(ctx context.Context, sourceFile string) (int64, error)
}

// Result summarizes one ingest run.
type Result struct {
	FilesAdded   int           `json:"files_added"`
	FilesSkipped int           `json:"files_skipped"`
	FilesFailed  int           `json:"files_failed"`
	ChunksAdded  int           `json:"chunks_added"`
	TotalSize    int64         `json:"total_size"`
	Duration     time.Duration `json:"duration"`
}

// Pipeline ingests documents into the knowledge store.
type Pipeline struct {
	store    Store
	splitter *chunker.Splitter
	lockPath string
	logger   log.Logger
}

// New creates a Pipeline. lockPath names the flock file guarding ingest
// runs; empty falls back to the system temp directory.
func New(store Store, splitter *chunker.Splitter, lockPath string, logger log.Logger) *Pipeline {
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), "studyai-ingest.lock")
	}
	return &Pipeline{
		store:    store,
		splitter: splitter,
		lockPath: lockPath,
		logger:   logger,
	}
}

// IngestPath ingests a single file or every supported file under a
// directory. Individual file failures are counted, not fatal.
func (p *Pipeline) IngestPath(ctx context.Context, path string) (*Result, error) {
	unlock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	start := time.Now()
	result := &Result{}

	if !info.IsDir() {
		p.ingestOne(ctx, path, result)
		result.Duration = time.Since(start)
		return result, nil
	}

	err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			result.FilesFailed++
			return nil
		}
		if d.IsDir() {
			// Hidden directories hold nothing worth embedding.
			if name := d.Name(); name != "." && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if !document.Supported(entry) {
			result.FilesSkipped++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.ingestOne(ctx, entry, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", path, err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("ingest finished",
		"path", path,
		"added", result.FilesAdded,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.ChunksAdded,
		"duration", result.Duration,
	)
	return result, nil
}

// IngestURL fetches a web page and ingests its readable text.
func (p *Pipeline) IngestURL(ctx context.Context, rawURL string) (*Result, error) {
	unlock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	result := &Result{}

	file, err := document.LoadURL(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("loading url: %w", err)
	}

	n, err := p.index(ctx, file)
	if err != nil {
		return nil, err
	}

	result.FilesAdded = 1
	result.ChunksAdded = n
	result.TotalSize = int64(len(file.Text))
	result.Duration = time.Since(start)
	return result, nil
}

// ingestOne loads and indexes one file, recording the outcome in result.
func (p *Pipeline) ingestOne(ctx context.Context, path string, result *Result) {
	file, err := document.Load(path)
	if err != nil {
		p.logger.Warn("skipping unreadable file", "path", path, "error", err)
		result.FilesFailed++
		return
	}

	n, err := p.index(ctx, file)
	if err != nil {
		p.logger.Warn("indexing failed", "path", path, "error", err)
		result.FilesFailed++
		return
	}

	result.FilesAdded++
	result.ChunksAdded += n
	result.TotalSize += int64(len(file.Text))
}

// index cleans, chunks, and embeds one loaded document. Stale chunks from
// a previous ingest of the same source are deleted first; chunk IDs are
// positional, so a shorter re-ingest would otherwise leave orphans behind.
func (p *Pipeline) index(ctx context.Context, file *document.File) (int, error) {
	text := document.Structure(document.Clean(file.Text))
	unit, topic := chunker.ParseHeaders(text)

	pieces := p.splitter.Split(file.Stem, text, map[string]string{
		knowledge.MetaUnit:       unit,
		knowledge.MetaTopic:      topic,
		knowledge.MetaSourceFile: file.Name,
	})
	if len(pieces) == 0 {
		return 0, fmt.Errorf("no text to index in %s", file.Name)
	}

	if _, err := p.store.DeleteSource(ctx, file.Name); err != nil {
		return 0, fmt.Errorf("clearing previous chunks: %w", err)
	}

	now := time.Now().UTC()
	chunks := make([]knowledge.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = knowledge.Chunk{
			ID:        piece.ID,
			Content:   piece.Text,
			Metadata:  piece.Metadata,
			CreatedAt: now,
		}
	}

	if err := p.store.AddBatch(ctx, chunks); err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	p.logger.Debug("indexed document",
		"source", file.Name,
		"unit", unit,
		"topic", topic,
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// lock takes the ingest file lock, returning an unlock func.
func (p *Pipeline) lock() (func(), error) {
	fl := flock.New(p.lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.logger.Warn("releasing ingest lock", "error", err)
		}
	}, nil
}
