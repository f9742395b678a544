// Package pipeline drives a project through candidate collection, model
// labelling, predicate compilation, engine queries and path post-processing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/internal/candidates"
	"github.com/scan-io-git/taint-io/internal/codeql"
	"github.com/scan-io-git/taint-io/internal/dispatcher"
	"github.com/scan-io-git/taint-io/internal/labelcache"
	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/internal/llm"
	"github.com/scan-io-git/taint-io/internal/postprocess"
	"github.com/scan-io-git/taint-io/internal/predicate"
	"github.com/scan-io-git/taint-io/internal/projectinfo"
	"github.com/scan-io-git/taint-io/internal/prompts"
	"github.com/scan-io-git/taint-io/internal/queries"
	"github.com/scan-io-git/taint-io/internal/reconciler"
	"github.com/scan-io-git/taint-io/pkg/shared"
	"github.com/scan-io-git/taint-io/pkg/shared/config"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// Engine is the subset of the query engine the pipeline drives.
type Engine interface {
	InstallPack(ctx context.Context, dir string) error
	Analyze(ctx context.Context, database, query, format, output string) error
	RunQuery(ctx context.Context, database, query, csvOutput string) error
}

// FetcherFactory picks the README source of a project.
type FetcherFactory func(p *projectinfo.Project) (projectinfo.ContentFetcher, error)

// Options selects what a run does.
type Options struct {
	Query string
	// RunID scopes outputs and caches. A random id is generated when empty.
	RunID  string
	Stages []Stage
	// ForceRefresh ignores cached labels and relabels every candidate.
	ForceRefresh bool
	// Overwrite recomputes artifacts that already exist on disk.
	Overwrite bool
}

// Result summarizes one project run. It is stored in the command artifact.
type Result struct {
	Project             string               `json:"project"`
	Query               string               `json:"query"`
	RunID               string               `json:"run_id"`
	Stage               Stage                `json:"stage"`
	Skipped             bool                 `json:"skipped,omitempty"`
	Candidates          int                  `json:"candidates"`
	FuncParamCandidates int                  `json:"func_param_candidates"`
	Sources             int                  `json:"sources"`
	Sinks               int                  `json:"sinks"`
	TaintPropagators    int                  `json:"taint_propagators"`
	FuncParams          int                  `json:"func_params"`
	Driver              string               `json:"driver,omitempty"`
	SARIF               string               `json:"sarif,omitempty"`
	Filtered            string               `json:"filtered,omitempty"`
	Postprocess         *postprocess.Summary `json:"postprocess,omitempty"`
}

// Runner executes the pipeline. One Runner serves many projects concurrently;
// all per-project state lives in a run.
type Runner struct {
	cfg       *config.Config
	model     llm.Model
	modelName string
	engine    Engine
	fetchers  FetcherFactory
	logger    hclog.Logger
}

func New(cfg *config.Config, model llm.Model, engine Engine, fetchers FetcherFactory, logger hclog.Logger) *Runner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Runner{
		cfg:       cfg,
		model:     model,
		modelName: cfg.LLM.Model,
		engine:    engine,
		fetchers:  fetchers,
		logger:    logger,
	}
}

type run struct {
	*Runner
	opts    Options
	project *projectinfo.Project
	eco     labels.Ecosystem
	query   queries.Query
	layout  Layout
	pack    *codeql.Pack
	result  *Result
	logger  hclog.Logger
}

var errSkipped = errors.New("project skipped")

// Run executes the selected stages for one project. Stage failures are
// returned as StageError; a skipped project is not an error.
func (r *Runner) Run(ctx context.Context, projectName string, opts Options) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	stages := opts.Stages
	if len(stages) == 0 {
		stages = AllStages
	}
	result := &Result{Project: projectName, Query: opts.Query, RunID: opts.RunID}

	st, err := r.prepare(projectName, opts, result)
	if err != nil {
		return result, &taintioErrors.StageError{Project: projectName, Stage: "prepare", Err: err}
	}
	st.logger.Info("processing project", "query", opts.Query, "run_id", opts.RunID, "ecosystem", st.eco.String())

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Stage = stage
		err := st.runStage(ctx, stage)
		if errors.Is(err, errSkipped) {
			result.Skipped = true
			return result, nil
		}
		if err != nil {
			return result, &taintioErrors.StageError{Project: projectName, Stage: string(stage), Err: err}
		}
	}
	return result, nil
}

func (r *Runner) prepare(projectName string, opts Options, result *Result) (*run, error) {
	q, err := queries.Lookup(opts.Query)
	if err != nil {
		return nil, err
	}
	p, err := projectinfo.Load(r.cfg.TaintIO.ProjectsFolder, r.cfg.TaintIO.DatabasesFolder, projectName)
	if err != nil {
		return nil, err
	}
	language := r.cfg.Language()
	if p.Language != "" {
		language = p.Language
	}
	eco, err := labels.ParseEcosystem(language)
	if err != nil {
		return nil, err
	}
	layout := NewLayout(r.cfg, projectName, opts.RunID, q)
	return &run{
		Runner:  r,
		opts:    opts,
		project: p,
		eco:     eco,
		query:   q,
		layout:  layout,
		pack:    codeql.NewPack(layout.PackDir(), eco),
		result:  result,
		logger:  r.logger.Named(projectName),
	}, nil
}

func (st *run) runStage(ctx context.Context, stage Stage) error {
	st.logger.Info("stage started", "stage", stage)
	var err error
	switch stage {
	case StageCollect:
		err = st.collect(ctx)
	case StageLabelAPIs:
		err = st.labelAPIs(ctx)
	case StageLabelFuncParams:
		err = st.labelFuncParams(ctx)
	case StageCompile:
		err = st.compile()
	case StageQuery:
		err = st.runQuery(ctx)
	case StagePostprocess:
		err = st.postprocess()
	default:
		err = fmt.Errorf("unknown stage %q", stage)
	}
	if err == nil {
		st.logger.Info("stage finished", "stage", stage)
	}
	return err
}

func (st *run) installPack(ctx context.Context) error {
	return st.pack.Install(ctx, st.engine)
}

func (st *run) extractFacts(ctx context.Context, fact string) error {
	out := st.layout.FactsCSV(fact)
	if files.Exists(out) && !st.opts.Overwrite {
		st.logger.Debug("reusing extracted facts", "fact", fact, "path", out)
		return nil
	}
	query, err := st.pack.WriteFactQuery(fact, st.cfg.CodeQL.FactQueries[fact])
	if err != nil {
		return err
	}
	if !files.Exists(st.project.DatabaseDir) {
		return taintioErrors.NewMissingInputError(string(StageCollect), st.project.DatabaseDir)
	}
	if err := files.CreateFolderIfNotExists(filepath.Dir(out)); err != nil {
		return err
	}
	st.logger.Info("extracting facts", "fact", fact)
	return st.engine.RunQuery(ctx, st.project.DatabaseDir, query, out)
}

func (st *run) fixedModules() []string {
	if modules := st.project.FixedModules(); len(modules) > 0 {
		return modules
	}
	diff, err := st.project.LoadFixDiff()
	if err != nil {
		st.logger.Warn("fix diff is not available", "reason", err)
		return nil
	}
	return projectinfo.ModulesOf(diff.Files)
}

func (st *run) collect(ctx context.Context) error {
	if err := st.installPack(ctx); err != nil {
		return err
	}
	for _, fact := range []string{queries.FactExternalAPIs, queries.FactFuncParams} {
		if err := st.extractFacts(ctx, fact); err != nil {
			return err
		}
	}

	stage := string(StageCollect)
	apiFacts, err := candidates.LoadFacts(stage, st.layout.FactsCSV(queries.FactExternalAPIs))
	if err != nil {
		return err
	}
	paramFacts, err := candidates.LoadFacts(stage, st.layout.FactsCSV(queries.FactFuncParams))
	if err != nil {
		return err
	}

	internal := candidates.NewPackageSet()
	if path := st.layout.PackageList(); files.Exists(path) {
		if internal, err = candidates.LoadPackageSet(path); err != nil {
			return err
		}
	} else {
		st.logger.Warn("no package list, every package is treated as external", "path", path)
	}

	collector := candidates.New(candidates.Policy{
		Ecosystem:            st.eco,
		InternalPackages:     internal,
		FixedModules:         st.fixedModules(),
		FilterByModule:       st.cfg.Pipeline.FilterByModule,
		FilterByModuleLarge:  st.cfg.Pipeline.FilterByModuleLarge,
		HugeProjectThreshold: st.cfg.HugeProjectThreshold(),
	}, st.logger.Named("collector"))

	apis := collector.Collect(apiFacts)
	params := collector.CollectFuncParams(paramFacts)
	if err := candidates.WriteCandidatesCSV(st.layout.CandidatesCSV(), apis); err != nil {
		return err
	}
	if err := candidates.WriteFuncParamsCSV(st.layout.FuncParamCandidatesCSV(), params); err != nil {
		return err
	}
	st.result.Candidates = len(apis)
	st.result.FuncParamCandidates = len(params)
	return nil
}

func (st *run) replayOrphans(rec *reconciler.Reconciler, logDir string) ([]labels.LabelRecord, error) {
	if st.opts.ForceRefresh && st.cfg.SkipOrphanReplay() {
		st.logger.Debug("forced refresh, not replaying earlier responses", "dir", logDir)
		return nil, nil
	}
	return rec.RecoverFromOrphanedLogs(logDir)
}

func (st *run) labelAPIs(ctx context.Context) error {
	cands, err := candidates.ReadCandidatesCSV(string(StageLabelAPIs), st.layout.CandidatesCSV())
	if err != nil {
		return err
	}
	ids := candidates.Identities(cands)
	st.result.Candidates = len(ids)

	if st.cfg.Pipeline.SkipHugeProject && len(ids) > st.cfg.HugeProjectThreshold() {
		st.logger.Info("skipping project due to it being too large", "candidates", len(ids), "threshold", st.cfg.HugeProjectThreshold())
		return errSkipped
	}

	cache, err := labelcache.Load(st.layout.APICachePath(st.modelName), labelcache.FullIdentity, st.logger.Named("cache"))
	if err != nil {
		return err
	}
	rec := reconciler.New(st.eco, cache, labels.None, st.logger.Named("reconciler"))
	logDir := st.layout.APILogDir()

	recovered, err := st.replayOrphans(rec, logDir)
	if err != nil {
		return err
	}

	toQuery := rec.FilterToQuery(ids, st.opts.ForceRefresh)
	st.logger.Info("labelling APIs", "candidates", len(ids), "to_query", len(toQuery), "cached", len(ids)-len(toQuery))

	d := dispatcher.New(st.model, logDir, st.cfg.LLMConcurrency(), st.logger.Named("dispatcher"))
	diff, err := st.project.LoadFixDiff()
	if err != nil {
		return err
	}
	builder := prompts.APIBuilder{Query: st.query, Diff: diff.Text}
	responses, err := dispatcher.Dispatch(ctx, d, toQuery, st.cfg.APIBatchSize(), builder.Build)
	if err != nil {
		return err
	}

	fresh := append(rec.ParseResponses(responses), recovered...)
	merged, err := rec.MergeAndCache(ids, toQuery, fresh)
	if err != nil {
		return err
	}
	buckets := reconciler.Classify(merged)
	if err := buckets.Save(st.layout.QueryDir()); err != nil {
		return err
	}
	if err := reconciler.MarkReconciled(logDir); err != nil {
		return err
	}

	st.result.Sources = len(buckets.Sources)
	st.result.Sinks = len(buckets.Sinks)
	st.result.TaintPropagators = len(buckets.TaintPropagators)
	st.logger.Info("labelled APIs", "sources", st.result.Sources, "sinks", st.result.Sinks, "taint_propagators", st.result.TaintPropagators)
	return nil
}

func (st *run) describe(ctx context.Context, logDir string) string {
	if st.fetchers == nil {
		return ""
	}
	fetcher, err := st.fetchers(st.project)
	if err != nil {
		st.logger.Warn("cannot reach project hosting", "reason", err)
		return ""
	}
	head, err := projectinfo.NewDescriber(fetcher, st.logger.Named("readme")).Describe(ctx, st.project, logDir, st.opts.Overwrite)
	if err != nil {
		st.logger.Warn("project description is not available", "reason", err)
		return ""
	}
	return head
}

func (st *run) labelFuncParams(ctx context.Context) error {
	cands, err := candidates.ReadCandidatesCSV(string(StageLabelFuncParams), st.layout.FuncParamCandidatesCSV())
	if err != nil {
		return err
	}
	st.result.FuncParamCandidates = len(cands)

	cache, err := labelcache.Load(st.layout.FuncParamCachePath(st.modelName), labelcache.ByMethod, st.logger.Named("cache"))
	if err != nil {
		return err
	}
	rec := reconciler.New(st.eco, cache, labels.Source, st.logger.Named("reconciler"))
	logDir := st.layout.FuncParamLogDir()
	if err := files.CreateFolderIfNotExists(logDir); err != nil {
		return err
	}

	recovered, err := st.replayOrphans(rec, logDir)
	if err != nil {
		return err
	}

	byID := make(map[labels.APIIdentity]candidates.FuncParamCandidate, len(cands))
	for _, c := range cands {
		byID[c.Identity] = c
	}
	ids := candidates.Identities(cands)
	toQuery := rec.FilterToQuery(ids, st.opts.ForceRefresh)
	batch := make([]candidates.FuncParamCandidate, 0, len(toQuery))
	for _, id := range toQuery {
		batch = append(batch, byID[id])
	}
	st.logger.Info("labelling function parameters", "candidates", len(ids), "to_query", len(toQuery))

	var responses []dispatcher.Response
	if len(batch) > 0 {
		diff, err := st.project.LoadFixDiff()
		if err != nil {
			return err
		}
		builder := prompts.FuncParamBuilder{
			Owner:  st.project.Owner(),
			Name:   st.project.RepoName(),
			Readme: st.describe(ctx, logDir),
			Diff:   diff.Text,
		}
		d := dispatcher.New(st.model, logDir, st.cfg.LLMConcurrency(), st.logger.Named("dispatcher"))
		if responses, err = dispatcher.Dispatch(ctx, d, batch, st.cfg.FuncParamBatchSize(), builder.Build); err != nil {
			return err
		}
	}

	fresh := append(rec.ParseResponses(responses), recovered...)
	merged, err := rec.MergeAndCache(ids, toQuery, fresh)
	if err != nil {
		return err
	}
	if err := reconciler.SaveRecords(st.funcParamsPath(), merged); err != nil {
		return err
	}
	if err := reconciler.MarkReconciled(logDir); err != nil {
		return err
	}
	st.result.FuncParams = len(merged)
	st.logger.Info("labelled function parameters", "sources", len(merged))
	return nil
}

func (st *run) funcParamsPath() string {
	return filepath.Join(st.layout.QueryDir(), reconciler.FuncParamsFile)
}

func (st *run) compile() error {
	stage := string(StageCompile)
	buckets, err := reconciler.LoadBuckets(stage, st.layout.QueryDir())
	if err != nil {
		return err
	}
	funcParams, err := reconciler.LoadRecords(stage, st.funcParamsPath())
	if err != nil {
		return err
	}

	var manual *predicate.ManualRules
	if st.cfg.Pipeline.ManualRules {
		if manual, err = predicate.LoadManualRules(st.cfg.TaintIO.ManualRulesFolder, st.eco); err != nil {
			return err
		}
	}

	compiler := predicate.New(predicate.Options{
		Ecosystem:      st.eco,
		BatchSize:      st.cfg.PredicateBatchSize(),
		NoSummaryModel: st.cfg.Pipeline.NoSummaryModel,
		Manual:         manual,
	}, st.logger.Named("compiler"))

	bodies := []predicate.Body{
		compiler.CompileSourceBody(buckets.Sources, funcParams),
		compiler.CompileTaintPropagatorBody(buckets.TaintPropagators, funcParams),
		compiler.CompileSinkBody(buckets.Sinks),
	}
	model := codeql.BuildExtensionModel(st.eco, codeql.Tag(st.project.Name), buckets.Sources, funcParams, buckets.Sinks)

	driver, err := st.pack.WriteQuery(st.query, bodies, model)
	if err != nil {
		return err
	}
	st.result.Sources = len(buckets.Sources)
	st.result.Sinks = len(buckets.Sinks)
	st.result.TaintPropagators = len(buckets.TaintPropagators)
	st.result.FuncParams = len(funcParams)
	st.result.Driver = driver
	return nil
}

func (st *run) runQuery(ctx context.Context) error {
	driver := st.pack.DriverPath(st.query)
	if !files.Exists(driver) {
		return taintioErrors.NewMissingInputError(string(StageQuery), driver)
	}
	if err := st.installPack(ctx); err != nil {
		return err
	}
	if err := files.CreateFolderIfNotExists(st.layout.ResultsDir()); err != nil {
		return err
	}
	if err := st.engine.Analyze(ctx, st.project.DatabaseDir, driver, codeql.FormatSARIF, st.layout.SARIF()); err != nil {
		return err
	}
	if err := st.engine.Analyze(ctx, st.project.DatabaseDir, driver, codeql.FormatCSV, st.layout.CSV()); err != nil {
		return err
	}
	st.result.Driver = driver
	st.result.SARIF = st.layout.SARIF()
	return nil
}

func (st *run) postprocess() error {
	input := st.layout.SARIF()
	if !files.Exists(input) {
		return taintioErrors.NewMissingInputError(string(StagePostprocess), input)
	}
	summary, err := postprocess.New(st.eco, st.project.SourceDir, st.logger.Named("postprocess")).
		ProcessFile(input, postprocess.OutputPath(input))
	if err != nil {
		return err
	}
	st.result.SARIF = input
	st.result.Filtered = summary.Output
	st.result.Postprocess = summary
	return nil
}

// RunMany runs every project with at most jobs projects in flight. A failing
// project does not stop the others.
func (r *Runner) RunMany(ctx context.Context, projects []string, opts Options, jobs int) shared.GenericLaunchesResult {
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	launches := make([]shared.GenericResult, len(projects))
	shared.ForEveryWithBoundedGoroutines(jobs, projects, func(i int, project string) {
		args := map[string]string{"project": project, "query": opts.Query, "run_id": opts.RunID}
		result, err := r.Run(ctx, project, opts)
		switch {
		case err != nil:
			r.logger.Error("project failed", "project", project, "error", err)
			launches[i] = shared.GenericResult{Args: args, Result: result, Status: shared.StatusFailed, Message: err.Error()}
		case result.Skipped:
			launches[i] = shared.GenericResult{Args: args, Result: result, Status: shared.StatusSkipped, Message: "too many candidates"}
		default:
			launches[i] = shared.GenericResult{Args: args, Result: result, Status: shared.StatusOK}
		}
	})
	return shared.GenericLaunchesResult{Launches: launches}
}
