// Package github wraps the GitHub API surface the pipelines need: pull
// request metadata with per-commit diffs, single-commit changes for baseline
// updates, and file content at arbitrary refs. Every call goes through one
// rate limiter.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/google/go-github/v57/github"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mhelmih/docureco/internal/models"
)

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	client  *github.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a GitHub client. rateLimit is requests per second.
func NewClient(token string, rateLimit int, logger *slog.Logger) *Client {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:  github.NewClient(nil).WithAuthToken(token),
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:  logger.With("component", "github"),
	}
}

var prURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParsePRURL extracts owner, repo and PR number from a pull request URL.
// Trailing segments (/files, #issuecomment-...) are tolerated.
func ParsePRURL(prURL string) (owner, repo string, number int, err error) {
	m := prURLPattern.FindStringSubmatch(prURL)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid GitHub PR URL: %s", prURL)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid PR number in URL: %s", prURL)
	}
	return m[1], m[2], number, nil
}

// FetchPullRequest loads a PR with its file list and its commits, including
// each commit's own file diff (fetched concurrently, bounded).
func (c *Client) FetchPullRequest(ctx context.Context, owner, repo string, number int) (*models.PullRequest, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("fetch pull request: %w", err)
	}

	result := &models.PullRequest{
		Repository: fmt.Sprintf("%s/%s", owner, repo),
		Number:     number,
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		BaseBranch: pr.GetBase().GetRef(),
		BaseSHA:    pr.GetBase().GetSHA(),
		HeadSHA:    pr.GetHead().GetSHA(),
	}

	files, err := c.fetchPRFiles(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	result.Files = files

	commits, err := c.fetchPRCommits(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	// Per-commit diffs drive the per-commit classification batches.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range commits {
		i := i
		g.Go(func() error {
			detailed, err := c.fetchCommit(gctx, owner, repo, commits[i].SHA)
			if err != nil {
				return err
			}
			commits[i].Files = detailed.Files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.Commits = commits

	return result, nil
}

// BaseBranchOf returns the base branch name of a PR without loading diffs.
func (c *Client) BaseBranchOf(ctx context.Context, owner, repo string, number int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("fetch pull request: %w", err)
	}
	return pr.GetBase().GetRef(), nil
}

func (c *Client) fetchPRFiles(ctx context.Context, owner, repo string, number int) ([]models.FileChange, error) {
	opts := &github.ListOptions{PerPage: 100}
	var all []models.FileChange
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("fetch pull request files: %w", err)
		}
		for _, f := range files {
			all = append(all, models.FileChange{
				Filename:         f.GetFilename(),
				Status:           f.GetStatus(),
				Additions:        f.GetAdditions(),
				Deletions:        f.GetDeletions(),
				Patch:            f.GetPatch(),
				PreviousFilename: f.GetPreviousFilename(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (c *Client) fetchPRCommits(ctx context.Context, owner, repo string, number int) ([]models.Commit, error) {
	opts := &github.ListOptions{PerPage: 100}
	var all []models.Commit
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		commits, resp, err := c.client.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("fetch pull request commits: %w", err)
		}
		for _, commit := range commits {
			all = append(all, models.Commit{
				SHA:       commit.GetSHA(),
				Message:   commit.GetCommit().GetMessage(),
				Author:    commit.GetCommit().GetAuthor().GetName(),
				Timestamp: commit.GetCommit().GetAuthor().GetDate().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (c *Client) fetchCommit(ctx context.Context, owner, repo, sha string) (*models.Commit, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	commit, _, err := c.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch commit %s: %w", sha, err)
	}

	result := &models.Commit{
		SHA:       commit.GetSHA(),
		Message:   commit.GetCommit().GetMessage(),
		Author:    commit.GetCommit().GetAuthor().GetName(),
		Timestamp: commit.GetCommit().GetAuthor().GetDate().Time,
	}
	for _, f := range commit.Files {
		result.Files = append(result.Files, models.FileChange{
			Filename:         f.GetFilename(),
			Status:           f.GetStatus(),
			Additions:        f.GetAdditions(),
			Deletions:        f.GetDeletions(),
			Patch:            f.GetPatch(),
			PreviousFilename: f.GetPreviousFilename(),
		})
	}
	return result, nil
}

// CommitChanges returns one commit's file diff plus its first parent's SHA,
// which is the "old" side for document diffing. A root commit returns an
// empty parent.
func (c *Client) CommitChanges(ctx context.Context, owner, repo, sha string) (*models.Commit, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limiter: %w", err)
	}
	commit, _, err := c.client.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch commit %s: %w", sha, err)
	}

	parent := ""
	if len(commit.Parents) > 0 {
		parent = commit.Parents[0].GetSHA()
	}

	result := &models.Commit{
		SHA:       commit.GetSHA(),
		Message:   commit.GetCommit().GetMessage(),
		Author:    commit.GetCommit().GetAuthor().GetName(),
		Timestamp: commit.GetCommit().GetAuthor().GetDate().Time,
	}
	for _, f := range commit.Files {
		result.Files = append(result.Files, models.FileChange{
			Filename:         f.GetFilename(),
			Status:           f.GetStatus(),
			Additions:        f.GetAdditions(),
			Deletions:        f.GetDeletions(),
			Patch:            f.GetPatch(),
			PreviousFilename: f.GetPreviousFilename(),
		})
	}
	return result, parent, nil
}

// FileContentAt returns a file's decoded content at a ref. A missing file
// returns an empty string, which is what document diffing expects for the
// old side of an added file.
func (c *Client) FileContentAt(ctx context.Context, owner, repo, path, ref string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	content, _, resp, err := c.client.Repositories.GetContents(ctx, owner, repo, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return "", nil
		}
		return "", fmt.Errorf("fetch content of %s@%s: %w", path, ref, err)
	}
	if content == nil {
		return "", nil
	}
	decoded, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode content of %s@%s: %w", path, ref, err)
	}
	return decoded, nil
}
