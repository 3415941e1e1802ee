// Package discovery finds the repositories a harvest processes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huangsam/repoharvest/internal/contract"
	"github.com/huangsam/repoharvest/schema"
)

// progressEvery is how often collection progress is logged.
const progressEvery = 20

// PaginatedDiscoverer walks cursor-paginated search results until it has enough repositories.
type PaginatedDiscoverer struct {
	Fetcher   PageFetcher
	Predicate string
	PageSize  int
	PageDelay time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

var _ contract.Discoverer = &PaginatedDiscoverer{}

// NewPaginatedDiscoverer wires a discoverer from validated configuration.
func NewPaginatedDiscoverer(cfg *contract.Config, logger *slog.Logger) *PaginatedDiscoverer {
	return &PaginatedDiscoverer{
		Fetcher:   NewGraphQLClient(cfg.APIURL, cfg.Token, cfg.RequestTimeout),
		Predicate: cfg.SearchQuery(),
		PageSize:  cfg.PageSize,
		PageDelay: cfg.PageDelay,
		Now:       time.Now,
		Logger:    logger,
	}
}

// Discover returns up to limit repositories in API order.
// On a request fault it returns the repositories collected so far together with the error.
func (d *PaginatedDiscoverer) Discover(ctx context.Context, limit int) ([]schema.RepositoryDescriptor, error) {
	repos := []schema.RepositoryDescriptor{}
	if limit <= 0 {
		return repos, nil
	}

	logger := contract.LoggerOrDiscard(d.Logger)
	now := d.now()
	pageSize := d.PageSize
	if pageSize <= 0 {
		pageSize = contract.DefaultPageSize
	}
	seen := make(map[string]struct{}, limit)
	cursor := ""

	logger.Info("starting discovery", "query", d.Predicate, "limit", limit)
	for page := 1; ; page++ {
		result, err := d.Fetcher.FetchPage(ctx, d.Predicate, pageSize, cursor)
		if err != nil {
			logFault(logger, err)
			return repos, err
		}
		logger.Debug("fetched page", "page", page, "nodes", len(result.Nodes), "has_next", result.PageInfo.HasNextPage)

		for _, node := range result.Nodes {
			if len(repos) >= limit {
				break
			}
			repo, err := toDescriptor(node, now)
			if err != nil {
				logger.Warn("skipping malformed repository", "name", node.Name, "error", err)
				continue
			}
			if _, dup := seen[repo.URL]; dup {
				continue
			}
			seen[repo.URL] = struct{}{}
			repos = append(repos, repo)
			if len(repos)%progressEvery == 0 {
				logger.Info("discovery progress", "collected", len(repos), "limit", limit,
					"percent", fmt.Sprintf("%.1f", float64(len(repos))/float64(limit)*100))
			}
		}

		if len(repos) >= limit || !result.PageInfo.HasNextPage {
			break
		}
		next := result.PageInfo.EndCursor
		if next == "" || next == cursor {
			err := &DiscoveryError{Err: fmt.Errorf("%w after page %d (cursor %q)", ErrStalledCursor, page, next)}
			logFault(logger, err)
			return repos, err
		}
		cursor = next

		if err := sleepContext(ctx, d.PageDelay); err != nil {
			return repos, err
		}
	}

	logger.Info("discovery finished", "collected", len(repos))
	return repos, nil
}

func (d *PaginatedDiscoverer) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// toDescriptor validates a node and converts it into a descriptor.
func toDescriptor(node RepositoryNode, now time.Time) (schema.RepositoryDescriptor, error) {
	if node.Name == "" {
		return schema.RepositoryDescriptor{}, errors.New("missing name")
	}
	if node.Owner == nil || node.Owner.Login == "" {
		return schema.RepositoryDescriptor{}, errors.New("missing owner")
	}
	if node.URL == "" {
		return schema.RepositoryDescriptor{}, errors.New("missing url")
	}
	created, err := time.Parse(time.RFC3339, node.CreatedAt)
	if err != nil {
		return schema.RepositoryDescriptor{}, fmt.Errorf("invalid createdAt %q: %w", node.CreatedAt, err)
	}

	repo := schema.RepositoryDescriptor{
		Name:            node.Name,
		Owner:           node.Owner.Login,
		URL:             node.URL,
		Stars:           node.StargazerCount,
		AgeDays:         AgeDays(created, now),
		PrimaryLanguage: schema.UnknownLanguage,
		CreatedAt:       created.UTC(),
	}
	if node.Description != nil {
		repo.Description = *node.Description
	}
	if node.PrimaryLanguage != nil && node.PrimaryLanguage.Name != "" {
		repo.PrimaryLanguage = node.PrimaryLanguage.Name
	}
	if node.Releases != nil {
		repo.TotalReleases = node.Releases.TotalCount
	}
	return repo, nil
}

// AgeDays returns the number of whole days between created and now.
func AgeDays(created, now time.Time) int {
	if now.Before(created) {
		return 0
	}
	return int(now.Sub(created) / (24 * time.Hour))
}

func logFault(logger *slog.Logger, err error) {
	var de *DiscoveryError
	if errors.As(err, &de) {
		logger.Error("discovery stopped", "status", de.StatusCode, "reason", de.Explain())
		return
	}
	logger.Error("discovery stopped", "error", err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
