package projectinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// DiffFile is a pre-computed fix diff stored in the project folder.
const DiffFile = "diff.txt"

// FixDiff is the patch introduced by the fixing commits.
type FixDiff struct {
	Text  string
	Files []string
}

// LoadFixDiff prefers a stored diff.txt and otherwise computes the diff of
// every fix commit against its first parent in the repository at SourceDir.
// A project without either yields an empty diff.
func (p *Project) LoadFixDiff() (*FixDiff, error) {
	stored := filepath.Join(p.SourceDir, DiffFile)
	if data, err := os.ReadFile(stored); err == nil {
		return &FixDiff{Text: string(data), Files: p.FixedFiles}, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	if len(p.FixCommits) == 0 {
		return &FixDiff{Files: p.FixedFiles}, nil
	}
	return CommitDiff(p.SourceDir, p.FixCommits)
}

// CommitDiff renders the unified diff of each commit against its first parent.
func CommitDiff(repoPath string, commits []string) (*FixDiff, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %q: %w", repoPath, err)
	}

	var (
		text  strings.Builder
		files []string
		seen  = make(map[string]bool)
	)
	for _, hash := range commits {
		commit, err := repo.CommitObject(plumbing.NewHash(hash))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve commit %q: %w", hash, err)
		}
		patch, err := commitPatch(commit)
		if err != nil {
			return nil, fmt.Errorf("failed to diff commit %q: %w", hash, err)
		}
		text.WriteString(patch.String())

		for _, fp := range patch.FilePatches() {
			_, to := fp.Files()
			if to == nil || seen[to.Path()] {
				continue
			}
			seen[to.Path()] = true
			files = append(files, to.Path())
		}
	}
	return &FixDiff{Text: text.String(), Files: files}, nil
}

func commitPatch(commit *object.Commit) (*object.Patch, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	if commit.NumParents() == 0 {
		changes, err := object.DiffTree(nil, tree)
		if err != nil {
			return nil, err
		}
		return changes.Patch()
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	return parentTree.Patch(tree)
}
