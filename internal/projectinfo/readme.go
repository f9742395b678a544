package projectinfo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/go-github/v47/github"
	"github.com/hashicorp/go-hclog"
	"github.com/xanzy/go-gitlab"

	"github.com/scan-io-git/taint-io/pkg/shared/config"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
	"github.com/scan-io-git/taint-io/pkg/shared/httpclient"
)

const (
	ReadmeFile     = "readme.txt"
	ReadmeHeadFile = "readme_head.txt"
	// DefaultBranch is tried after every fix commit.
	DefaultBranch = "master"
	// MaxDescriptionLines bounds the description paragraph.
	MaxDescriptionLines = 10
)

// ReadmeNames are tried in order at every revision.
var ReadmeNames = []string{"README.md", "README.adoc", "README", "readme.md", "readme"}

var errNotFound = errors.New("file not found")

// ContentFetcher reads a single file of a hosted repository at a revision.
type ContentFetcher interface {
	FetchFile(ctx context.Context, owner, repo, ref, path string) ([]byte, error)
}

// GithubFetcher reads files through the GitHub contents API.
type GithubFetcher struct {
	client *github.Client
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// NewGithubFetcher builds a GitHub client on top of the shared HTTP settings.
func NewGithubFetcher(cfg *config.Config, logger hclog.Logger) *GithubFetcher {
	httpClient := httpclient.InitializeRestyClient(logger, cfg).GetClient()
	if token := cfg.VCS.GithubToken; token != "" {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		httpClient.Transport = &tokenTransport{token: token, base: base}
	}
	return &GithubFetcher{client: github.NewClient(httpClient)}
}

func (f *GithubFetcher) FetchFile(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	file, _, resp, err := f.client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errNotFound
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// GitlabFetcher reads raw files through the GitLab repository files API.
type GitlabFetcher struct {
	client *gitlab.Client
}

func NewGitlabFetcher(cfg *config.Config) (*GitlabFetcher, error) {
	var opts []gitlab.ClientOptionFunc
	if cfg.VCS.GitlabBaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.VCS.GitlabBaseURL))
	}
	client, err := gitlab.NewClient(cfg.VCS.GitlabToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &GitlabFetcher{client: client}, nil
}

func (f *GitlabFetcher) FetchFile(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	data, resp, err := f.client.RepositoryFiles.GetRawFile(owner+"/"+repo, path, &gitlab.GetRawFileOptions{Ref: gitlab.String(ref)}, gitlab.WithContext(ctx))
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// NewFetcher picks the hosting client from the repository URL.
func NewFetcher(cfg *config.Config, p *Project, logger hclog.Logger) (ContentFetcher, error) {
	info, err := p.remote()
	if err != nil {
		return NewGithubFetcher(cfg, logger), nil
	}
	if strings.Contains(string(info.Host), "gitlab") || (cfg.VCS.GitlabBaseURL != "" && strings.Contains(cfg.VCS.GitlabBaseURL, string(info.Host))) {
		return NewGitlabFetcher(cfg)
	}
	return NewGithubFetcher(cfg, logger), nil
}

// Describer produces the project description used in function-parameter prompts.
type Describer struct {
	fetcher ContentFetcher
	logger  hclog.Logger
}

func NewDescriber(fetcher ContentFetcher, logger hclog.Logger) *Describer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Describer{fetcher: fetcher, logger: logger}
}

// Describe returns the first descriptive README paragraph of the project. The
// README is looked up at every fix commit and then at the default branch. The
// fetched README and its head are stored in logDir; a stored head is reused
// unless overwrite is set. A project without a README yields "".
func (d *Describer) Describe(ctx context.Context, p *Project, logDir string, overwrite bool) (string, error) {
	headPath := filepath.Join(logDir, ReadmeHeadFile)
	if !overwrite {
		if data, err := os.ReadFile(headPath); err == nil {
			d.logger.Debug("reusing fetched readme", "path", headPath)
			return string(data), nil
		}
	}

	owner, repo := p.Owner(), p.RepoName()
	refs := append(append([]string{}, p.FixCommits...), DefaultBranch)
	for _, ref := range refs {
		for _, name := range ReadmeNames {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			data, err := d.fetcher.FetchFile(ctx, owner, repo, ref, name)
			if err != nil {
				d.logger.Debug("readme fetch failed", "owner", owner, "repo", repo, "ref", ref, "file", name, "reason", err)
				continue
			}
			text := string(data)
			head := FirstParagraph(strings.Split(text, "\n"))
			if err := files.WriteFileAtomic(filepath.Join(logDir, ReadmeFile), data); err != nil {
				return "", err
			}
			if err := files.WriteFileAtomic(headPath, []byte(head)); err != nil {
				return "", err
			}
			d.logger.Info("fetched project readme", "ref", ref, "file", name)
			return head, nil
		}
	}
	d.logger.Warn("no project readme found", "owner", owner, "repo", repo)
	return "", nil
}

// FirstParagraph keeps the leading prose of a README: lines starting with a
// letter, with markup lines and repeated blanks collapsed into a single empty
// line, bounded by MaxDescriptionLines.
func FirstParagraph(lines []string) string {
	var kept []string
	prevEmpty := true
	for _, line := range lines {
		if len(kept) >= MaxDescriptionLines {
			break
		}
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && unicode.IsLetter([]rune(trimmed)[0]) {
			kept = append(kept, trimmed)
			prevEmpty = false
			continue
		}
		if !prevEmpty {
			kept = append(kept, "")
			prevEmpty = true
		}
	}
	return strings.Join(kept, "\n")
}
