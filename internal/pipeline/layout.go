package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
)

// Layout names every artifact of one project, run and query.
type Layout struct {
	// ProjectOutput is <output>/<project>/<run id>.
	ProjectOutput string
	cacheRoot     string
	packageLists  string
	project       string
	query         queries.Query
}

func NewLayout(cfg *config.Config, project, runID string, q queries.Query) Layout {
	return Layout{
		ProjectOutput: filepath.Join(cfg.TaintIO.OutputFolder, project, runID),
		cacheRoot:     filepath.Join(cfg.TaintIO.CacheFolder, runID, "cwe-"+q.CWEID, project),
		packageLists:  cfg.TaintIO.PackageListsFolder,
		project:       project,
		query:         q,
	}
}

// FactsCSV is the decoded result of a fact-extraction query.
func (l Layout) FactsCSV(fact string) string {
	return filepath.Join(l.ProjectOutput, "fetch_"+fact, "results.csv")
}

func (l Layout) CommonDir() string {
	return filepath.Join(l.ProjectOutput, "analysis", "common")
}

func (l Layout) CandidatesCSV() string {
	return filepath.Join(l.CommonDir(), "candidate_apis.csv")
}

func (l Layout) FuncParamCandidatesCSV() string {
	return filepath.Join(l.CommonDir(), "source_func_param_candidates.csv")
}

// QueryDir holds the labelled buckets of the weakness query.
func (l Layout) QueryDir() string {
	return filepath.Join(l.ProjectOutput, "analysis", l.query.Name)
}

func (l Layout) APILogDir() string {
	return filepath.Join(l.QueryDir(), "logs", "label_apis")
}

func (l Layout) FuncParamLogDir() string {
	return filepath.Join(l.QueryDir(), "logs", "label_func_params")
}

// APICachePath is scoped to one project, run and weakness so that concurrent
// projects never share a cache file.
func (l Layout) APICachePath(model string) string {
	return filepath.Join(l.cacheRoot, "api_labels_"+sanitize(model)+".json")
}

func (l Layout) FuncParamCachePath(model string) string {
	return filepath.Join(l.cacheRoot, "func_labels_"+sanitize(model)+".json")
}

// PackDir is the project-local query pack.
func (l Layout) PackDir() string {
	return filepath.Join(l.ProjectOutput, "qlpack")
}

func (l Layout) ResultsDir() string {
	return filepath.Join(l.ProjectOutput, l.query.Name)
}

func (l Layout) SARIF() string {
	return filepath.Join(l.ResultsDir(), "results.sarif")
}

func (l Layout) CSV() string {
	return filepath.Join(l.ResultsDir(), "results.csv")
}

// PackageList lists the packages declared by the project itself.
func (l Layout) PackageList() string {
	return filepath.Join(l.packageLists, l.project+".txt")
}

func sanitize(name string) string {
	if name == "" {
		return "default"
	}
	return strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(name)
}
