// Package scan produces a flat path -> content view of a repository at a
// given ref, honoring a fixed ignore list. It is the only component that
// enumerates repository files; both the baseline pipelines and the code
// inventory refresh go through it.
package scan

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v57/github"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/mhelmih/docureco/internal/errors"
)

// File is one snapshot entry. Binary files are flagged and carry no content.
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Binary  bool   `json:"binary,omitempty"`
}

// Scanner fetches snapshots over the GitHub git-data API.
type Scanner struct {
	client     *github.Client
	limiter    *rate.Limiter
	maxWorkers int
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTimeout overrides the per-snapshot deadline (default 5 minutes).
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScanner creates a scanner authenticated with the given token.
func NewScanner(token string, logger *slog.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{
		client:     github.NewClient(nil).WithAuthToken(token),
		limiter:    rate.NewLimiter(rate.Limit(10), 1),
		maxWorkers: 8,
		timeout:    5 * time.Minute,
		logger:     logger.With("component", "scan"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot lists every non-ignored blob at ref and downloads its content
// with a bounded worker pool. On any failure, including a blown deadline, it
// returns a ScanFailed error and no partial result.
func (s *Scanner) Snapshot(ctx context.Context, owner, repo, ref string) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperrors.ScanFailed(err, "rate limiter interrupted")
	}

	tree, _, err := s.client.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, apperrors.ScanFailed(err, "fetch repository tree").
			WithContext("repository", owner+"/"+repo).
			WithContext("ref", ref)
	}

	var entries []*github.TreeEntry
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" || Ignored(entry.GetPath()) {
			continue
		}
		entries = append(entries, entry)
	}

	var mu sync.Mutex
	files := make([]File, 0, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			raw, _, err := s.client.Git.GetBlobRaw(gctx, owner, repo, entry.GetSHA())
			if err != nil {
				return err
			}

			f := File{Path: entry.GetPath()}
			if utf8.Valid(raw) {
				f.Content = string(raw)
			} else {
				f.Binary = true
			}

			mu.Lock()
			files = append(files, f)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.ScanFailed(err, "download repository blobs").
			WithContext("repository", owner+"/"+repo).
			WithContext("ref", ref)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	s.logger.Info("snapshot complete",
		"repository", owner+"/"+repo, "ref", ref, "files", len(files))
	return files, nil
}

// SplitDocs partitions a snapshot into SDD files, SRS files and code files.
// Binary entries never qualify.
func SplitDocs(files []File) (sdd, srs, code []File) {
	for _, f := range files {
		if f.Binary {
			continue
		}
		switch {
		case IsSDDPath(f.Path):
			sdd = append(sdd, f)
		case IsSRSPath(f.Path):
			srs = append(srs, f)
		case IsCodePath(f.Path):
			code = append(code, f)
		}
	}
	return sdd, srs, code
}
