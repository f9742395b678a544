// Package projectinfo gathers the context a labelling prompt needs about the
// analysed project: its identity, the fixing diff and a short description.
package projectinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gitsight/go-vcsurl"

	"github.com/scan-io-git/taint-io/pkg/shared/config"
)

// DescriptorFile is the optional per-project metadata file inside the project folder.
const DescriptorFile = "project.yml"

// Project describes one analysed repository.
type Project struct {
	// Name is the project slug, conventionally <owner>__<name>_<cve>_<version>.
	Name       string   `yaml:"name"`
	Repository string   `yaml:"repository"`
	CVE        string   `yaml:"cve"`
	Language   string   `yaml:"language"`
	FixCommits []string `yaml:"fix_commits"`
	// FixedFiles lists files touched by the fix, relative to the repository root.
	FixedFiles []string `yaml:"fixed_files"`

	SourceDir   string `yaml:"-"`
	DatabaseDir string `yaml:"-"`
}

// Load reads the project descriptor from <projectsFolder>/<name>/project.yml.
// A missing descriptor yields a project known only by its name.
func Load(projectsFolder, databasesFolder, name string) (*Project, error) {
	p := &Project{Name: name}
	path := filepath.Join(projectsFolder, name, DescriptorFile)
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadYAML(path, p); err != nil {
			return nil, err
		}
		if p.Name == "" {
			p.Name = name
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	p.SourceDir = filepath.Join(projectsFolder, name)
	p.DatabaseDir = filepath.Join(databasesFolder, name)
	return p, nil
}

// Owner and RepoName come from the repository URL when one is set, otherwise
// from the project slug.
func (p *Project) Owner() string {
	if info, err := p.remote(); err == nil {
		return info.Username
	}
	parts := strings.Split(p.Name, "_")
	return parts[0]
}

func (p *Project) RepoName() string {
	if info, err := p.remote(); err == nil {
		return info.Name
	}
	parts := strings.Split(p.Name, "_")
	if len(parts) > 2 {
		return parts[2]
	}
	if len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}

func (p *Project) remote() (*vcsurl.VCS, error) {
	if p.Repository == "" {
		return nil, fmt.Errorf("project %q has no repository url", p.Name)
	}
	return vcsurl.Parse(p.Repository)
}

// FixedModules returns the module directories of fixed main-source files.
// A file at the repository root yields the empty module.
func (p *Project) FixedModules() []string {
	return ModulesOf(p.FixedFiles)
}

// ModulesOf maps file paths under <module>/src/main to their module directory.
func ModulesOf(paths []string) []string {
	seen := make(map[string]bool)
	var modules []string
	for _, path := range paths {
		path = filepath.ToSlash(path)
		idx := strings.Index(path, "src/main")
		if idx < 0 {
			continue
		}
		module := strings.TrimSuffix(path[:idx], "/")
		if !seen[module] {
			seen[module] = true
			modules = append(modules, module)
		}
	}
	sort.Strings(modules)
	return modules
}
