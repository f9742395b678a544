package reconciler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/scan-io-git/taint-io/internal/labels"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// File names of the per-project label outputs.
const (
	SourcesFile          = "api_labels_source.json"
	SinksFile            = "api_labels_sink.json"
	TaintPropagatorsFile = "api_labels_taint_prop.json"
	FuncParamsFile       = "func_param_labels.json"
)

// Buckets holds the labelled APIs of one project, split by type.
type Buckets struct {
	Sources          []labels.LabelRecord
	Sinks            []labels.LabelRecord
	TaintPropagators []labels.LabelRecord
}

type bucketKey struct {
	id  labels.APIIdentity
	typ labels.LabelType
}

// Classify splits records into buckets. Each identity lands once, the first
// occurrence wins. Records typed none are dropped.
func Classify(records []labels.LabelRecord) Buckets {
	var b Buckets
	seen := make(map[labels.APIIdentity]bool, len(records))
	for _, rec := range records {
		if rec.Type == labels.None || seen[rec.Identity] {
			continue
		}
		if b.add(rec) {
			seen[rec.Identity] = true
		}
	}
	return b
}

func (b *Buckets) add(rec labels.LabelRecord) bool {
	switch rec.Type {
	case labels.Source:
		b.Sources = append(b.Sources, rec)
	case labels.Sink:
		b.Sinks = append(b.Sinks, rec)
	case labels.TaintPropagator:
		b.TaintPropagators = append(b.TaintPropagators, rec)
	default:
		return false
	}
	return true
}

// Fold appends records not already present with the same identity and type.
// It returns how many were added; folding the same records twice adds nothing.
func (b *Buckets) Fold(records []labels.LabelRecord) int {
	seen := make(map[bucketKey]bool, b.Len())
	for _, list := range [][]labels.LabelRecord{b.Sources, b.Sinks, b.TaintPropagators} {
		for _, rec := range list {
			seen[bucketKey{rec.Identity, rec.Type}] = true
		}
	}
	added := 0
	for _, rec := range records {
		k := bucketKey{rec.Identity, rec.Type}
		if seen[k] {
			continue
		}
		if b.add(rec) {
			seen[k] = true
			added++
		}
	}
	return added
}

// Len is the total number of records over all buckets.
func (b Buckets) Len() int {
	return len(b.Sources) + len(b.Sinks) + len(b.TaintPropagators)
}

// Save writes each bucket to its own file in dir.
func (b Buckets) Save(dir string) error {
	for name, list := range map[string][]labels.LabelRecord{
		SourcesFile:          b.Sources,
		SinksFile:            b.Sinks,
		TaintPropagatorsFile: b.TaintPropagators,
	} {
		if err := SaveRecords(filepath.Join(dir, name), list); err != nil {
			return err
		}
	}
	return nil
}

// LoadBuckets reads the three bucket files from dir. Each file must exist.
func LoadBuckets(stage, dir string) (Buckets, error) {
	var b Buckets
	for name, dst := range map[string]*[]labels.LabelRecord{
		SourcesFile:          &b.Sources,
		SinksFile:            &b.Sinks,
		TaintPropagatorsFile: &b.TaintPropagators,
	} {
		list, err := LoadRecords(stage, filepath.Join(dir, name))
		if err != nil {
			return Buckets{}, err
		}
		*dst = list
	}
	return b, nil
}

// SaveRecords writes records as an indented JSON list, keeping their order.
func SaveRecords(path string, records []labels.LabelRecord) error {
	if records == nil {
		records = []labels.LabelRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", path, err)
	}
	return files.WriteFileAtomic(path, data)
}

// LoadRecords reads a JSON list of records. A missing file is a MissingInputError.
func LoadRecords(stage, path string) ([]labels.LabelRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, taintioErrors.NewMissingInputError(stage, path)
	}
	if err != nil {
		return nil, err
	}
	var records []labels.LabelRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", path, err)
	}
	return records, nil
}

func sortIdentities(ids []labels.APIIdentity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
