// Package candidates turns raw API usage facts into deduplicated candidate lists.
package candidates

import (
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/internal/labels"
)

// MaxDocLength bounds the documentation excerpt sent to the model.
const MaxDocLength = 50

// Policy configures the filtering pipeline.
type Policy struct {
	Ecosystem        labels.Ecosystem
	InternalPackages PackageSet
	// FixedModules are module directories touched by the historical fix commit.
	FixedModules         []string
	FilterByModule       bool
	FilterByModuleLarge  bool
	HugeProjectThreshold int
}

// CandidateSet is an ordered, deduplicated list of identities.
type CandidateSet []labels.APIIdentity

// FuncParamCandidate is an internal function whose parameters may be taint sources.
type FuncParamCandidate struct {
	Identity labels.APIIdentity
	Doc      string
}

// Collector applies a Policy to raw facts. It has no side effects.
type Collector struct {
	policy Policy
	logger hclog.Logger
}

func New(policy Policy, logger hclog.Logger) *Collector {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Collector{policy: policy, logger: logger}
}

// KeepExternal keeps facts whose package is not part of the project.
// C-family projects have no package notion, so every fact is kept.
func (c *Collector) KeepExternal(facts []Fact) []Fact {
	return c.keepByMembership(facts, false)
}

// KeepInternal keeps facts whose package is part of the project.
func (c *Collector) KeepInternal(facts []Fact) []Fact {
	return c.keepByMembership(facts, true)
}

func (c *Collector) keepByMembership(facts []Fact, internal bool) []Fact {
	if c.policy.Ecosystem == labels.CLike {
		return facts
	}
	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		if c.policy.InternalPackages.Contains(f.Package) == internal {
			out = append(out, f)
		}
	}
	return out
}

// inScope applies the optional module-scoping filter.
func (c *Collector) inScope(f Fact, rawCount int) bool {
	if c.policy.FilterByModule && !InFixedModule(f, c.policy.FixedModules) {
		return false
	}
	if c.policy.FilterByModuleLarge && rawCount > c.policy.HugeProjectThreshold && !InFixedModule(f, c.policy.FixedModules) {
		return false
	}
	return true
}

// IsAPICandidate runs the blacklist, module-scoping and non-triviality filters on an external API fact.
func (c *Collector) IsAPICandidate(f Fact, rawCount int) bool {
	if !NotOnBlacklist(f) {
		return false
	}
	if !c.inScope(f, rawCount) {
		return false
	}
	return HasNonTrivialParameter(f) || HasNonTrivialReturn(f)
}

// IsFuncParamCandidate runs the filters applied to internal function facts.
func (c *Collector) IsFuncParamCandidate(f Fact) bool {
	if !NotOnBlacklist(f) {
		return false
	}
	if c.policy.FilterByModule && !InFixedModule(f, c.policy.FixedModules) {
		return false
	}
	return hasNonPrimitiveParameter(f)
}

// Collect produces the external API candidate set.
func (c *Collector) Collect(facts []Fact) CandidateSet {
	rawCount := len(facts)
	external := c.KeepExternal(facts)

	seen := make(map[labels.APIIdentity]bool)
	var set CandidateSet
	for _, f := range external {
		if !c.IsAPICandidate(f, rawCount) {
			continue
		}
		id := f.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		set = append(set, id)
	}
	sortIdentities(set)

	c.logger.Info("collected API candidates", "raw", rawCount, "external", len(external), "candidates", len(set))
	return set
}

// CollectFuncParams produces function-parameter candidates, one per (package, class, method).
// Among duplicates a documented row wins, otherwise the longer signature.
func (c *Collector) CollectFuncParams(facts []Fact) []FuncParamCandidate {
	internal := c.KeepInternal(facts)

	best := make(map[labels.APIIdentity]Fact)
	for _, f := range internal {
		if !c.IsFuncParamCandidate(f) {
			continue
		}
		key := f.Identity().MethodKey()
		prev, ok := best[key]
		switch {
		case !ok:
			best[key] = f
		case f.Doc != "":
			best[key] = f
		case len(f.Signature) > len(prev.Signature):
			best[key] = f
		}
	}

	out := make([]FuncParamCandidate, 0, len(best))
	withDocs := 0
	for _, f := range best {
		doc := TruncateDoc(f.Doc)
		if doc != "" {
			withDocs++
		}
		out = append(out, FuncParamCandidate{Identity: f.Identity(), Doc: doc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Less(out[j].Identity) })

	c.logger.Info("collected function parameter candidates", "raw", len(facts), "internal", len(internal), "candidates", len(out), "with_docs", withDocs)
	return out
}

// TruncateDoc shortens documentation to MaxDocLength characters plus an ellipsis.
func TruncateDoc(doc string) string {
	runes := []rune(doc)
	if len(runes) <= MaxDocLength {
		return doc
	}
	return string(runes[:MaxDocLength]) + "..."
}

// Identities projects func-param candidates onto their identities.
func Identities(cands []FuncParamCandidate) CandidateSet {
	out := make(CandidateSet, len(cands))
	for i, c := range cands {
		out[i] = c.Identity
	}
	return out
}

func sortIdentities(ids []labels.APIIdentity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
