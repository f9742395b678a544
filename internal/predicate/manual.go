package predicate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scan-io-git/taint-io/internal/labels"
)

// ManualRules are method-name allow lists for source and step clauses.
type ManualRules struct {
	Sources     map[string]bool
	Propagators map[string]bool
}

// ManualRuleFiles returns the source and propagator allow-list paths for an ecosystem.
func ManualRuleFiles(dir string, eco labels.Ecosystem) (string, string) {
	return filepath.Join(dir, fmt.Sprintf("manual_source_%s.txt", eco)),
		filepath.Join(dir, fmt.Sprintf("manual_taint_propagator_%s.txt", eco))
}

// LoadManualRules reads the allow lists of eco from dir. A missing file is an empty list.
func LoadManualRules(dir string, eco labels.Ecosystem) (*ManualRules, error) {
	sourcePath, propagatorPath := ManualRuleFiles(dir, eco)
	sources, err := readNameSet(sourcePath)
	if err != nil {
		return nil, err
	}
	propagators, err := readNameSet(propagatorPath)
	if err != nil {
		return nil, err
	}
	return &ManualRules{Sources: sources, Propagators: propagators}, nil
}

func readNameSet(path string) (map[string]bool, error) {
	set := map[string]bool{}
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return set, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" && !strings.HasPrefix(name, "#") {
			set[name] = true
		}
	}
	return set, scanner.Err()
}

// C-family labels are never restricted.
func (m *ManualRules) allowSource(eco labels.Ecosystem) func(labels.LabelRecord) bool {
	if m == nil || eco == labels.CLike {
		return nil
	}
	return func(rec labels.LabelRecord) bool { return m.Sources[strings.TrimSpace(rec.Identity.Method)] }
}

func (m *ManualRules) allowPropagator(eco labels.Ecosystem) func(labels.LabelRecord) bool {
	if m == nil || eco == labels.CLike {
		return nil
	}
	return func(rec labels.LabelRecord) bool { return m.Propagators[strings.TrimSpace(rec.Identity.Method)] }
}
