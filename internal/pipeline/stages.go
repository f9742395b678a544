package pipeline

import (
	"fmt"
	"strings"
)

// Stage names one step of the labelling pipeline.
type Stage string

const (
	StageCollect         Stage = "collect"
	StageLabelAPIs       Stage = "label-apis"
	StageLabelFuncParams Stage = "label-func-params"
	StageCompile         Stage = "compile"
	StageQuery           Stage = "query"
	StagePostprocess     Stage = "postprocess"
)

// AllStages is the execution order.
var AllStages = []Stage{StageCollect, StageLabelAPIs, StageLabelFuncParams, StageCompile, StageQuery, StagePostprocess}

// ParseStages accepts stage names in any order and returns them in execution
// order. An empty list selects every stage.
func ParseStages(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return AllStages, nil
	}
	wanted := make(map[Stage]bool, len(names))
	for _, name := range names {
		s := Stage(strings.TrimSpace(name))
		if !s.valid() {
			return nil, fmt.Errorf("unknown stage %q, expected one of %s", name, stageList())
		}
		wanted[s] = true
	}
	var out []Stage
	for _, s := range AllStages {
		if wanted[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (s Stage) valid() bool {
	for _, known := range AllStages {
		if s == known {
			return true
		}
	}
	return false
}

func stageList() string {
	names := make([]string, len(AllStages))
	for i, s := range AllStages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
