// Package version works out the release version of a source checkout.
package version

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
	"github.com/go-git/go-git/v6/storage/filesystem"
)

// Default is reported when neither git nor VERSION.txt yields a version.
const Default = "0.0.1"

// FileName is the version file kept next to the checkout.
const FileName = "VERSION.txt"

var (
	ErrNoRepository = errors.New("not a git repository")
	ErrNoTags       = errors.New("no tags reachable from HEAD")
)

// Resolve returns the version of the checkout at dir: a git-describe style
// string when dir is a git repository with a reachable tag (also written to
// VERSION.txt), else the contents of VERSION.txt, else Default.
func Resolve(dir string) string {
	if v, err := Describe(dir); err == nil {
		_ = os.WriteFile(filepath.Join(dir, FileName), []byte(v+"\n"), 0o644)
		return v
	}
	if data, err := os.ReadFile(filepath.Join(dir, FileName)); err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v
		}
	}
	return Default
}

// Describe names HEAD relative to the nearest tag: "tag" when HEAD is tagged,
// otherwise "tag-N-gHASH" with N commits since the tag and HASH the
// abbreviated HEAD commit.
func Describe(dir string) (string, error) {
	repo, err := open(dir)
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	tags, err := tagsByCommit(repo)
	if err != nil {
		return "", err
	}

	commits, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", fmt.Errorf("walk history: %w", err)
	}
	defer commits.Close()

	var (
		tag      string
		distance int
	)
	err = commits.ForEach(func(c *object.Commit) error {
		if name, ok := tags[c.Hash]; ok {
			tag = name
			return storer.ErrStop
		}
		distance++
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk history: %w", err)
	}
	if tag == "" {
		return "", ErrNoTags
	}
	if distance == 0 {
		return tag, nil
	}
	return fmt.Sprintf("%s-%d-g%s", tag, distance, head.Hash().String()[:7]), nil
}

func open(dir string) (*git.Repository, error) {
	wt := osfs.New(dir)
	dot, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dot.Root()); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoRepository, dir)
	}

	st := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.Open(st, wt)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

// tagsByCommit maps commit hashes to tag names, peeling annotated tags. When
// several tags point at one commit the lexically greatest wins.
func tagsByCommit(repo *git.Repository) (map[plumbing.Hash]string, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer refs.Close()

	tags := make(map[plumbing.Hash]string)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if annotated, err := repo.TagObject(target); err == nil {
			c, err := annotated.Commit()
			if err != nil {
				return nil // tag of a non-commit object
			}
			target = c.Hash
		}
		name := ref.Name().Short()
		if prev, ok := tags[target]; !ok || name > prev {
			tags[target] = name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}
