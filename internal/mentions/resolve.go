package mentions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ghostbot/ghostbot/internal/adapters/github"
	"github.com/ghostbot/ghostbot/internal/logging"
)

// DefaultOwnerTTR is how long a resolved repository owner is reused.
const DefaultOwnerTTR = time.Hour

// RepoSearcher finds repositories by name, most starred first.
type RepoSearcher interface {
	SearchRepositories(ctx context.Context, name string) ([]*github.Repository, error)
}

// OwnerResolver finds the owner of a repository known only by name, e.g.
// the "uv" in uv#8020. Results are cached; failures are not.
type OwnerResolver struct {
	cache *TTRCache[string, string]
}

// NewOwnerResolver creates an OwnerResolver. A nil clock means time.Now.
func NewOwnerResolver(searcher RepoSearcher, ttr time.Duration, clock Clock) *OwnerResolver {
	lookup := func(ctx context.Context, name string) (string, error) {
		repos, err := searcher.SearchRepositories(ctx, name)
		if err != nil {
			return "", fmt.Errorf("search repositories %q: %w", name, err)
		}
		for _, repo := range repos {
			if repo.Name == name && repo.Owner.Login != "" {
				return repo.Owner.Login, nil
			}
		}
		return "", fmt.Errorf("repository %q: %w", name, ErrNotFound)
	}
	return &OwnerResolver{cache: NewTTRCache(ttr, lookup, clock)}
}

// Resolve returns the owner login of the most starred repository named exactly name.
func (r *OwnerResolver) Resolve(ctx context.Context, name string) (string, error) {
	return r.cache.Get(ctx, name)
}

// Resolver turns parsed references into canonical keys.
type Resolver struct {
	org    string
	repos  map[string]string
	owners *OwnerResolver
	log    *slog.Logger
}

// NewResolver creates a Resolver. Bare #N mentions go to org's repos[github.MainRepoKey];
// the other keys of repos are accepted as prefixes (web#12).
func NewResolver(org string, repos map[string]string, owners *OwnerResolver) *Resolver {
	return &Resolver{
		org:    org,
		repos:  repos,
		owners: owners,
		log:    logging.WithComponent("mentions.resolver"),
	}
}

// Resolve maps references to keys, dropping repository names whose owner
// cannot be found. The result has no duplicates.
func (r *Resolver) Resolve(ctx context.Context, refs []Reference) []Key {
	keys := make([]Key, 0, len(refs))
	seen := make(map[Key]struct{}, len(refs))

	for _, ref := range refs {
		key, ok := r.resolve(ctx, ref)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func (r *Resolver) resolve(ctx context.Context, ref Reference) (Key, bool) {
	switch {
	case ref.Bare():
		repo, ok := r.repos[github.MainRepoKey]
		if !ok {
			return Key{}, false
		}
		return Key{Owner: r.org, Repo: repo, Number: ref.Number}, true

	case ref.Owner != "":
		return Key{Owner: ref.Owner, Repo: ref.Repo, Number: ref.Number}, true
	}

	if repo, ok := r.repos[ref.Repo]; ok {
		return Key{Owner: r.org, Repo: repo, Number: ref.Number}, true
	}

	owner, err := r.owners.Resolve(ctx, ref.Repo)
	if err != nil {
		r.log.Debug("Skipping unresolvable repository",
			slog.String("repo", ref.Repo),
			slog.Any("error", err))
		return Key{}, false
	}
	return Key{Owner: owner, Repo: ref.Repo, Number: ref.Number}, true
}
