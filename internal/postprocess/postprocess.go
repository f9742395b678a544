// Package postprocess suppresses engine alarms whose paths are known to be noise.
package postprocess

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/taint-io/internal/labels"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

// OutputSuffix is appended to the engine result name to form the post-processed file.
const OutputSuffix = "-posthoc-filtered"

// Stats counts alarms and the code flows they carry.
type Stats struct {
	Alarms int `json:"alarms"`
	Paths  int `json:"paths"`
}

func (s Stats) String() string {
	return fmt.Sprintf("%d alarms, %d paths", s.Alarms, s.Paths)
}

// Summary is the outcome of one filtering pass.
type Summary struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Before Stats  `json:"before"`
	After  Stats  `json:"after"`
}

// Processor filters the results of a single project.
type Processor struct {
	eco        labels.Ecosystem
	sourceRoot string
	logger     hclog.Logger
}

func New(eco labels.Ecosystem, sourceRoot string, logger hclog.Logger) *Processor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Processor{eco: eco, sourceRoot: sourceRoot, logger: logger}
}

// OutputPath derives the post-processed file name from the engine result file.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + OutputSuffix + ext
}

// CollectStats counts alarms and code flows of every run in the report.
func CollectStats(report *sarif.Report) Stats {
	var s Stats
	for _, run := range report.Runs {
		s.Alarms += len(run.Results)
		for _, result := range run.Results {
			s.Paths += len(result.CodeFlows)
		}
	}
	return s
}

// ProcessFile reads the engine result at input, filters it and writes the
// copy to output. The input file is left untouched.
func (p *Processor) ProcessFile(input, output string) (*Summary, error) {
	report, err := sarif.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read results %q: %w", input, err)
	}

	filtered, err := p.Filter(report)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := filtered.PrettyWrite(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode filtered results: %w", err)
	}
	if err := files.WriteFileAtomic(output, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write %q: %w", output, err)
	}

	summary := &Summary{
		Input:  input,
		Output: output,
		Before: CollectStats(report),
		After:  CollectStats(filtered),
	}
	p.logger.Info("post-processing finished", "before", summary.Before.String(), "after", summary.After.String(), "output", output)
	return summary, nil
}

// Filter returns a filtered copy of report.
func (p *Processor) Filter(report *sarif.Report) (*sarif.Report, error) {
	clone, err := deepCopy(report)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("filtering results", "stats", CollectStats(report).String())

	for _, run := range clone.Runs {
		kept := make([]*sarif.Result, 0, len(run.Results))
		for _, result := range run.Results {
			if filtered := p.FilterAlarm(result); len(filtered.CodeFlows) > 0 {
				kept = append(kept, filtered)
			}
		}
		run.Results = kept
	}
	return clone, nil
}

// FilterAlarm drops the code flows of result that touch test code or end in a
// print statement. An alarm without code flows comes back unchanged and is
// expected to be discarded by the caller.
func (p *Processor) FilterAlarm(result *sarif.Result) *sarif.Result {
	kept := make([]*sarif.CodeFlow, 0, len(result.CodeFlows))
	for _, flow := range result.CodeFlows {
		locations := flowLocations(flow)
		if p.touchesTestCode(locations) {
			p.logger.Debug("dropping path through test code", "rule", ruleID(result))
			continue
		}
		if len(locations) > 0 && p.endsInPrint(locations[len(locations)-1]) {
			p.logger.Debug("dropping path ending in a print statement", "rule", ruleID(result))
			continue
		}
		kept = append(kept, flow)
	}
	result.CodeFlows = kept
	return result
}

func (p *Processor) touchesTestCode(locations []*sarif.Location) bool {
	for _, loc := range locations {
		if uri := locationURI(loc); uri != "" && files.IsTestPath(uri) {
			return true
		}
	}
	return false
}

func (p *Processor) endsInPrint(sink *sarif.Location) bool {
	uri := locationURI(sink)
	line := locationLine(sink)
	if uri == "" || line < 1 {
		return false
	}
	text, err := p.sinkLine(uri, line)
	if err != nil {
		p.logger.Debug("sink line is not readable, keeping path", "uri", uri, "line", line, "reason", err)
		return false
	}
	return IsPrintLine(p.eco, text)
}

func (p *Processor) sinkLine(uri string, line int) (string, error) {
	path, err := p.resolve(uri)
	if err != nil {
		return "", err
	}
	return files.ReadLine(path, line)
}

// resolve maps an artifact URI to a local file. Relative URIs must stay
// inside the source root.
func (p *Processor) resolve(uri string) (string, error) {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path, nil
	}
	if filepath.IsAbs(uri) {
		return uri, nil
	}
	return files.EnsureWithinRoot(p.sourceRoot, filepath.Join(p.sourceRoot, filepath.FromSlash(uri)))
}

// IsPrintLine reports whether a source line is a console print statement of the ecosystem.
func IsPrintLine(eco labels.Ecosystem, line string) bool {
	trimmed := strings.TrimSpace(line)
	switch eco {
	case labels.PythonLike:
		return strings.HasPrefix(trimmed, "print(")
	case labels.CLike:
		for _, prefix := range []string{"printf(", "puts(", "fprintf(stdout", "std::cout"} {
			if strings.HasPrefix(trimmed, prefix) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(line, ".println(") || strings.Contains(line, ".print(")
	}
}

func flowLocations(flow *sarif.CodeFlow) []*sarif.Location {
	var locations []*sarif.Location
	for _, thread := range flow.ThreadFlows {
		for _, tfl := range thread.Locations {
			if tfl != nil && tfl.Location != nil {
				locations = append(locations, tfl.Location)
			}
		}
	}
	return locations
}

func locationURI(loc *sarif.Location) string {
	if loc.PhysicalLocation == nil || loc.PhysicalLocation.ArtifactLocation == nil || loc.PhysicalLocation.ArtifactLocation.URI == nil {
		return ""
	}
	return *loc.PhysicalLocation.ArtifactLocation.URI
}

func locationLine(loc *sarif.Location) int {
	if loc.PhysicalLocation == nil || loc.PhysicalLocation.Region == nil || loc.PhysicalLocation.Region.StartLine == nil {
		return 0
	}
	return *loc.PhysicalLocation.Region.StartLine
}

func ruleID(result *sarif.Result) string {
	if result.RuleID == nil {
		return ""
	}
	return *result.RuleID
}

func deepCopy(report *sarif.Report) (*sarif.Report, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to copy results: %w", err)
	}
	return sarif.FromBytes(data)
}
