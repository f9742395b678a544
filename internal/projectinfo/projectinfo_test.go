package projectinfo

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-github/v47/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerAndRepoName(t *testing.T) {
	p := &Project{Name: "apache__commons-text_CVE-2022-42889_1.9"}
	assert.Equal(t, "apache", p.Owner())
	assert.Equal(t, "commons-text", p.RepoName())

	p = &Project{Name: "whatever", Repository: "https://github.com/perwendel/spark"}
	assert.Equal(t, "perwendel", p.Owner())
	assert.Equal(t, "spark", p.RepoName())
}

func TestModulesOf(t *testing.T) {
	got := ModulesOf([]string{
		"core/src/main/java/A.java",
		"core/src/main/java/B.java",
		"web/api/src/main/java/C.java",
		"core/src/test/java/ATest.java",
		"README.md",
	})
	assert.Equal(t, []string{"core", "web/api"}, got)
}

func TestLoad(t *testing.T) {
	projects := t.TempDir()
	dir := filepath.Join(projects, "demo")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DescriptorFile), []byte(`
repository: https://github.com/acme/demo
cve: CVE-2020-0001
fix_commits: [abc123]
fixed_files:
  - server/src/main/java/Handler.java
`), 0o644))

	p, err := Load(projects, "/dbs", "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	assert.Equal(t, []string{"abc123"}, p.FixCommits)
	assert.Equal(t, []string{"server"}, p.FixedModules())
	assert.Equal(t, dir, p.SourceDir)
	assert.Equal(t, filepath.Join("/dbs", "demo"), p.DatabaseDir)

	bare, err := Load(projects, "/dbs", "missing")
	require.NoError(t, err)
	assert.Equal(t, "missing", bare.Name)
	assert.Empty(t, bare.FixCommits)
}

func TestLoadFixDiffPrefersStoredDiff(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DiffFile), []byte("--- a/x\n+++ b/x\n"), 0o644))

	p := &Project{Name: "demo", SourceDir: dir, FixCommits: []string{"deadbeef"}}
	diff, err := p.LoadFixDiff()
	require.NoError(t, err)
	assert.Equal(t, "--- a/x\n+++ b/x\n", diff.Text)

	empty, err := (&Project{Name: "none", SourceDir: t.TempDir()}).LoadFixDiff()
	require.NoError(t, err)
	assert.Empty(t, empty.Text)
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, msg string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestCommitDiff(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	commitFile(t, repo, dir, "core/src/main/java/Handler.java", "class Handler {}\n", "initial")
	fix := commitFile(t, repo, dir, "core/src/main/java/Handler.java", "class Handler { void check() {} }\n", "fix")

	p := &Project{Name: "demo", SourceDir: dir, FixCommits: []string{fix}}
	diff, err := p.LoadFixDiff()
	require.NoError(t, err)
	assert.Contains(t, diff.Text, "+class Handler { void check() {} }")
	assert.Contains(t, diff.Text, "-class Handler {}")
	assert.Equal(t, []string{"core/src/main/java/Handler.java"}, diff.Files)
	assert.Equal(t, []string{"core"}, ModulesOf(diff.Files))

	_, err = CommitDiff(dir, []string{"0000000000000000000000000000000000000000"})
	assert.Error(t, err)
}

func TestFirstParagraph(t *testing.T) {
	lines := []string{
		"# Spark",
		"",
		"[![Build](badge.svg)](ci)",
		"",
		"Spark is a tiny web framework.",
		"It is written for Java 8.",
		"",
		"",
		"```java",
		"Usage follows.",
	}
	assert.Equal(t, "Spark is a tiny web framework.\nIt is written for Java 8.\n\nUsage follows.", FirstParagraph(lines))

	var many []string
	for i := 0; i < 20; i++ {
		many = append(many, fmt.Sprintf("line %d", i))
	}
	got := FirstParagraph(many)
	assert.Equal(t, MaxDescriptionLines, len(strings.Split(got, "\n")))
}

type fakeFetcher struct {
	files map[string]string
	calls []string
}

func (f *fakeFetcher) FetchFile(_ context.Context, owner, repo, ref, path string) ([]byte, error) {
	key := fmt.Sprintf("%s/%s@%s:%s", owner, repo, ref, path)
	f.calls = append(f.calls, key)
	if content, ok := f.files[key]; ok {
		return []byte(content), nil
	}
	return nil, errNotFound
}

func TestDescribeFallsBackToDefaultBranch(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string]string{
		"acme/demo@master:readme.md": "# Demo\n\nDemo parses things.\n",
	}}
	p := &Project{Name: "demo", Repository: "https://github.com/acme/demo", FixCommits: []string{"abc"}}
	logDir := t.TempDir()

	head, err := NewDescriber(fetcher, nil).Describe(context.Background(), p, logDir, false)
	require.NoError(t, err)
	assert.Equal(t, "Demo parses things.\n", head)
	assert.Equal(t, "acme/demo@abc:README.md", fetcher.calls[0])
	assert.Len(t, fetcher.calls, len(ReadmeNames)+4)

	stored, err := os.ReadFile(filepath.Join(logDir, ReadmeFile))
	require.NoError(t, err)
	assert.Contains(t, string(stored), "# Demo")

	fetcher.calls = nil
	again, err := NewDescriber(fetcher, nil).Describe(context.Background(), p, logDir, false)
	require.NoError(t, err)
	assert.Equal(t, head, again)
	assert.Empty(t, fetcher.calls)
}

func TestDescribeWithoutReadme(t *testing.T) {
	p := &Project{Name: "acme__demo_CVE-1_1"}
	head, err := NewDescriber(&fakeFetcher{}, nil).Describe(context.Background(), p, t.TempDir(), false)
	require.NoError(t, err)
	assert.Empty(t, head)
}

func TestGithubFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/demo/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("ref"))
		fmt.Fprintf(w, `{"type":"file","encoding":"base64","name":"README.md","path":"README.md","content":%q}`,
			base64.StdEncoding.EncodeToString([]byte("Demo parses things.\n")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := github.NewClient(nil)
	client.BaseURL, _ = url.Parse(server.URL + "/")
	fetcher := &GithubFetcher{client: client}

	data, err := fetcher.FetchFile(context.Background(), "acme", "demo", "abc", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "Demo parses things.\n", string(data))

	_, err = fetcher.FetchFile(context.Background(), "acme", "demo", "abc", "readme")
	assert.ErrorIs(t, err, errNotFound)
}
