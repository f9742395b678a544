package codeql

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"

	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/internal/predicate"
	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

const (
	packName      = "taintio"
	packVersion   = "1.0.0"
	qlpackFile    = "qlpack.yml"
	lockFile      = "codeql-pack.lock.yml"
	extensionFileName = "specs.model.yml"
)

// LockFilePath is the lock file written by pack install.
func LockFilePath(dir string) string { return filepath.Join(dir, lockFile) }

type qlpack struct {
	Name           string            `yaml:"name"`
	Version        string            `yaml:"version"`
	Dependencies   map[string]string `yaml:"dependencies"`
	DataExtensions []string          `yaml:"dataExtensions,omitempty"`
}

// Pack is a project-local query pack holding the compiled libraries.
type Pack struct {
	Dir       string
	Ecosystem labels.Ecosystem
}

// NewPack returns the pack rooted at dir.
func NewPack(dir string, eco labels.Ecosystem) *Pack {
	return &Pack{Dir: dir, Ecosystem: eco}
}

// WriteManifest writes qlpack.yml with the standard library dependencies of the ecosystem.
func (p *Pack) WriteManifest() error {
	lang := p.Ecosystem.String()
	manifest := qlpack{
		Name:    packName,
		Version: packVersion,
		Dependencies: map[string]string{
			fmt.Sprintf("codeql/%s-all", lang):     "*",
			fmt.Sprintf("codeql/%s-queries", lang): "*",
		},
	}
	if p.Ecosystem != labels.CLike {
		manifest.DataExtensions = []string{"*/" + extensionFileName}
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return err
	}
	return files.WriteFileAtomic(filepath.Join(p.Dir, qlpackFile), data)
}

// Installer resolves the dependencies of a pack directory. Runner is one.
type Installer interface {
	InstallPack(ctx context.Context, dir string) error
}

// Install writes the manifest and resolves dependencies.
func (p *Pack) Install(ctx context.Context, r Installer) error {
	if err := files.CreateFolderIfNotExists(p.Dir); err != nil {
		return err
	}
	if err := p.WriteManifest(); err != nil {
		return fmt.Errorf("failed to write %s: %w", qlpackFile, err)
	}
	return r.InstallPack(ctx, p.Dir)
}

// QueryDir is the directory holding the files of one weakness query.
func (p *Pack) QueryDir(queryName string) string {
	return filepath.Join(p.Dir, queryName)
}

// DriverPath is the path of the top-level query written by WriteQuery.
func (p *Pack) DriverPath(q queries.Query) string {
	return filepath.Join(p.QueryDir(q.Name), q.Name+".ql")
}

// WriteQuery writes the compiled predicate libraries, the driver query and,
// for ecosystems that support them, the data-extension model. It returns the
// path of the driver query.
func (p *Pack) WriteQuery(q queries.Query, bodies []predicate.Body, model *ExtensionModel) (string, error) {
	dir := p.QueryDir(q.Name)
	if err := files.CreateFolderIfNotExists(dir); err != nil {
		return "", err
	}

	for _, body := range bodies {
		path := filepath.Join(dir, body.Kind.ModuleName()+".qll")
		if err := files.WriteFileAtomic(path, []byte(body.Render())); err != nil {
			return "", err
		}
	}

	driver, err := queries.RenderDriver(p.Ecosystem, q)
	if err != nil {
		return "", err
	}
	driverPath := p.DriverPath(q)
	if err := files.WriteFileAtomic(driverPath, []byte(driver)); err != nil {
		return "", err
	}

	extPath := filepath.Join(dir, extensionFileName)
	if model == nil || p.Ecosystem == labels.CLike {
		if err := os.Remove(extPath); err != nil && !os.IsNotExist(err) {
			return "", err
		}
		return driverPath, nil
	}
	data, err := model.Marshal()
	if err != nil {
		return "", err
	}
	if err := files.WriteFileAtomic(extPath, data); err != nil {
		return "", err
	}
	return driverPath, nil
}

// WriteFactQuery places a fact-extraction query inside the pack. A custom
// query file overrides the bundled one.
func (p *Pack) WriteFactQuery(name, customPath string) (string, error) {
	var (
		src []byte
		err error
	)
	if customPath != "" {
		src, err = os.ReadFile(customPath)
	} else {
		var text string
		text, err = queries.FactQuery(p.Ecosystem, name)
		src = []byte(text)
	}
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.Dir, "facts", name+".ql")
	if err := files.WriteFileAtomic(path, src); err != nil {
		return "", err
	}
	return path, nil
}
