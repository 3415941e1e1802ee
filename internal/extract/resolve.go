package extract

import (
	"errors"
	"strings"
)

// ErrRootNotFound means no extracted directory could be identified as the repository root.
var ErrRootNotFound = errors.New("repository root not found in archive")

// RepoIdentity is what the resolution strategies know about a repository.
type RepoIdentity struct {
	Name   string
	Branch string
}

// Strategy picks the repository root among candidate directory names.
type Strategy func(candidates []string, id RepoIdentity) (string, bool)

// DefaultStrategies are applied in order; the first match wins.
var DefaultStrategies = []Strategy{
	ExactCandidate,
	NameAndBranchFragment,
	NameFragment,
	SoleDirectory,
	FirstVisibleDirectory,
}

// Resolve applies strategies in order and returns the first match.
func Resolve(candidates []string, id RepoIdentity, strategies ...Strategy) (string, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	for _, s := range strategies {
		if dir, ok := s(candidates, id); ok {
			return dir, nil
		}
	}
	return "", ErrRootNotFound
}

// ExactCandidate matches the names archive hosts conventionally give the top folder.
func ExactCandidate(candidates []string, id RepoIdentity) (string, bool) {
	if id.Name == "" {
		return "", false
	}
	var names []string
	if id.Branch != "" {
		names = append(names, id.Name+"-"+branchFragment(id.Branch))
	}
	names = append(names, id.Name+"-main", id.Name+"-master", id.Name)
	for _, want := range names {
		for _, c := range candidates {
			if strings.EqualFold(c, want) {
				return c, true
			}
		}
	}
	return "", false
}

// NameAndBranchFragment matches a directory naming both the repository and the branch.
func NameAndBranchFragment(candidates []string, id RepoIdentity) (string, bool) {
	name := nameFragment(id.Name)
	branch := strings.ToLower(branchFragment(id.Branch))
	if name == "" || branch == "" {
		return "", false
	}
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if strings.Contains(lc, name) && strings.Contains(lc, branch) {
			return c, true
		}
	}
	return "", false
}

// NameFragment matches any directory containing the repository name.
func NameFragment(candidates []string, id RepoIdentity) (string, bool) {
	name := nameFragment(id.Name)
	if name == "" {
		return "", false
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), name) {
			return c, true
		}
	}
	return "", false
}

// SoleDirectory matches when the archive produced exactly one directory.
func SoleDirectory(candidates []string, _ RepoIdentity) (string, bool) {
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return "", false
}

// FirstVisibleDirectory matches the first directory not starting with a dot.
func FirstVisibleDirectory(candidates []string, _ RepoIdentity) (string, bool) {
	for _, c := range candidates {
		if !strings.HasPrefix(c, ".") {
			return c, true
		}
	}
	return "", false
}

// nameFragment lowercases the name and drops a leading dot, which archive hosts strip.
func nameFragment(name string) string {
	return strings.TrimPrefix(strings.ToLower(name), ".")
}

// branchFragment mirrors how archive hosts flatten branch names into folder names.
func branchFragment(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}
