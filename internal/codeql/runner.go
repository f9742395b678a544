// Package codeql drives the CodeQL CLI: pack installation, query runs and result decoding.
package codeql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/pkg/shared/config"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// Result formats accepted by Analyze.
const (
	FormatSARIF = "sarif-latest"
	FormatCSV   = "csv"
)

// Runner invokes the codeql binary.
type Runner struct {
	binary      string
	searchPaths []string
	threads     int
	ram         int
	logger      hclog.Logger
}

// NewRunner creates a Runner from the codeql section of the configuration.
func NewRunner(cfg *config.Config, logger hclog.Logger) *Runner {
	return &Runner{
		binary:      cfg.CodeQLBinary(),
		searchPaths: cfg.CodeQL.SearchPaths,
		threads:     cfg.CodeQL.Threads,
		ram:         cfg.CodeQL.RAM,
		logger:      logger,
	}
}

// executeCommand runs the engine and streams its output into the logger.
func (r *Runner) executeCommand(ctx context.Context, args ...string) error {
	var stdBuffer bytes.Buffer
	mw := io.MultiWriter(r.logger.StandardWriter(&hclog.StandardLoggerOptions{InferLevels: true}), &stdBuffer)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = mw
	cmd.Stderr = mw

	r.logger.Debug("running engine", "command", r.binary, "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		r.logger.Error(fmt.Sprintf("%q execution error", r.binary), "error", err)
		return &taintioErrors.EngineInvocationError{
			Command:  r.binary + " " + strings.Join(args, " "),
			ExitCode: exitCode,
			Output:   stdBuffer.String(),
			Err:      err,
		}
	}
	return nil
}

func (r *Runner) tuningArgs() []string {
	var args []string
	if r.threads != 0 {
		args = append(args, "--threads="+strconv.Itoa(r.threads))
	}
	if r.ram > 0 {
		args = append(args, "--ram="+strconv.Itoa(r.ram))
	}
	return args
}

func (r *Runner) requireOutput(command, path string) error {
	if files.Exists(path) {
		return nil
	}
	return &taintioErrors.EngineInvocationError{
		Command:  command,
		ExitCode: 0,
		Err:      fmt.Errorf("expected output %q was not produced", path),
	}
}

// InstallPack resolves the dependencies of the pack in dir unless a lock file is present.
func (r *Runner) InstallPack(ctx context.Context, dir string) error {
	if files.Exists(LockFilePath(dir)) {
		r.logger.Debug("pack already installed", "dir", dir)
		return nil
	}
	r.logger.Info("installing query pack dependencies", "dir", dir)
	return r.executeCommand(ctx, "pack", "install", dir)
}

// Analyze runs query against the database and writes the result in format to output.
func (r *Runner) Analyze(ctx context.Context, database, query, format, output string) error {
	args := []string{"database", "analyze", "--rerun"}
	if len(r.searchPaths) > 0 {
		args = append(args, "--search-path="+strings.Join(r.searchPaths, ":"))
	}
	args = append(args, r.tuningArgs()...)
	args = append(args, database, "--format="+format, "--output="+output, query)

	if err := r.executeCommand(ctx, args...); err != nil {
		return err
	}
	return r.requireOutput(r.binary+" database analyze", output)
}

// RunQuery runs a table query and decodes its result set into csvOutput.
func (r *Runner) RunQuery(ctx context.Context, database, query, csvOutput string) error {
	bqrs := strings.TrimSuffix(csvOutput, ".csv") + ".bqrs"
	args := []string{"query", "run", "--database=" + database, "--output=" + bqrs}
	args = append(args, r.tuningArgs()...)
	args = append(args, "--", query)
	if err := r.executeCommand(ctx, args...); err != nil {
		return err
	}
	if err := r.requireOutput(r.binary+" query run", bqrs); err != nil {
		return err
	}

	if err := r.executeCommand(ctx, "bqrs", "decode", bqrs, "--format=csv", "--output="+csvOutput); err != nil {
		return err
	}
	return r.requireOutput(r.binary+" bqrs decode", csvOutput)
}
