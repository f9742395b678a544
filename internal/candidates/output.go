package candidates

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// WriteCandidatesCSV records the filtered API candidates for auditing.
func WriteCandidatesCSV(path string, set CandidateSet) error {
	rows := [][]string{{colPackage, colClass, colFunc, colSignature}}
	for _, id := range set {
		rows = append(rows, []string{id.Package, id.Class, id.Method, id.Signature})
	}
	return writeCSV(path, rows)
}

// WriteFuncParamsCSV records the filtered function-parameter candidates for auditing.
func WriteFuncParamsCSV(path string, cands []FuncParamCandidate) error {
	rows := [][]string{{colPackage, colClass, colFunc, colSignature, colDoc}}
	for _, c := range cands {
		rows = append(rows, []string{c.Identity.Package, c.Identity.Class, c.Identity.Method, c.Identity.Signature, c.Doc})
	}
	return writeCSV(path, rows)
}

// ReadCandidatesCSV loads a candidate table written by WriteCandidatesCSV or WriteFuncParamsCSV.
func ReadCandidatesCSV(stage, path string) ([]FuncParamCandidate, error) {
	facts, err := LoadFacts(stage, path)
	if err != nil {
		return nil, err
	}
	out := make([]FuncParamCandidate, 0, len(facts))
	for _, f := range facts {
		out = append(out, FuncParamCandidate{Identity: f.Identity(), Doc: f.Doc})
	}
	return out, nil
}

func writeCSV(path string, rows [][]string) error {
	if err := files.CreateFolderIfNotExists(filepath.Dir(path)); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}
