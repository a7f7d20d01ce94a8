package version

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
)

var signature = object.Signature{Name: "Test", Email: "test@example.com"}

type testRepo struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	dir := t.TempDir()
	wt := osfs.New(dir)
	dot, err := wt.Chroot(".git")
	if err != nil {
		t.Fatal(err)
	}
	st := filesystem.NewStorage(dot, cache.NewObjectLRUDefault())
	repo, err := git.Init(st, git.WithWorkTree(wt))
	if err != nil {
		t.Fatal(err)
	}
	return &testRepo{t: t, dir: dir, repo: repo}
}

func (r *testRepo) commit(name, content string) plumbing.Hash {
	r.t.Helper()
	if err := os.WriteFile(filepath.Join(r.dir, name), []byte(content), 0o644); err != nil {
		r.t.Fatal(err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		r.t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		r.t.Fatal(err)
	}
	sig := signature
	sig.When = time.Now()
	hash, err := wt.Commit("add "+name, &git.CommitOptions{Author: &sig})
	if err != nil {
		r.t.Fatal(err)
	}
	return hash
}

func TestResolveDefault(t *testing.T) {
	if got := Resolve(t.TempDir()); got != Default {
		t.Errorf("Resolve(empty dir) = %q, want %q", got, Default)
	}
}

func TestResolveVersionFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("  2.3.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(dir); got != "2.3.4" {
		t.Errorf("Resolve = %q, want 2.3.4", got)
	}
}

func TestDescribeNoRepository(t *testing.T) {
	if _, err := Describe(t.TempDir()); !errors.Is(err, ErrNoRepository) {
		t.Errorf("expected ErrNoRepository, got %v", err)
	}
}

func TestDescribeWithoutTagsFallsBack(t *testing.T) {
	r := newTestRepo(t)
	r.commit("schema.sql", "CREATE TABLE a (x int);")

	if _, err := Describe(r.dir); !errors.Is(err, ErrNoTags) {
		t.Errorf("expected ErrNoTags, got %v", err)
	}
	if got := Resolve(r.dir); got != Default {
		t.Errorf("Resolve = %q, want %q", got, Default)
	}
}

func TestDescribeTags(t *testing.T) {
	r := newTestRepo(t)
	first := r.commit("schema.sql", "CREATE TABLE a (x int);")
	if _, err := r.repo.CreateTag("v0.1.0", first, nil); err != nil {
		t.Fatal(err)
	}

	got, err := Describe(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != "v0.1.0" {
		t.Errorf("Describe on tagged HEAD = %q", got)
	}

	r.commit("more.sql", "CREATE INDEX i ON a (x);")
	head := r.commit("views.sql", "CREATE VIEW v AS SELECT 1;")

	want := "v0.1.0-2-g" + head.String()[:7]
	if got := Resolve(r.dir); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
	data, err := os.ReadFile(filepath.Join(r.dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != want+"\n" {
		t.Errorf("VERSION.txt = %q", data)
	}
}

func TestDescribeAnnotatedTag(t *testing.T) {
	r := newTestRepo(t)
	r.commit("schema.sql", "CREATE TABLE a (x int);")
	head := r.commit("more.sql", "DROP TABLE a;")

	sig := signature
	sig.When = time.Now()
	_, err := r.repo.CreateTag("v1.0.0", head, &git.CreateTagOptions{Tagger: &sig, Message: "release 1.0.0"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Describe(r.dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != "v1.0.0" {
		t.Errorf("Describe = %q, want v1.0.0", got)
	}
}
