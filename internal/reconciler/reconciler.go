// Package reconciler merges model labels with the label cache and sorts them into buckets.
package reconciler

import (
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/internal/dispatcher"
	"github.com/scan-io-git/taint-io/internal/labelcache"
	"github.com/scan-io-git/taint-io/internal/labels"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
)

// Reconciler owns one label cache for the duration of a pass.
type Reconciler struct {
	eco         labels.Ecosystem
	cache       *labelcache.Cache
	defaultType labels.LabelType
	logger      hclog.Logger
}

// New creates a Reconciler. defaultType is assigned to records that carry no
// type field; function-parameter labels are sources by construction.
func New(eco labels.Ecosystem, cache *labelcache.Cache, defaultType labels.LabelType, logger hclog.Logger) *Reconciler {
	if defaultType == "" {
		defaultType = labels.None
	}
	return &Reconciler{
		eco:         eco,
		cache:       cache,
		defaultType: defaultType,
		logger:      logger,
	}
}

// Cache returns the cache the reconciler writes to.
func (r *Reconciler) Cache() *labelcache.Cache { return r.cache }

// FilterToQuery returns the candidates without a cache entry, sorted.
// With force every candidate is returned.
func (r *Reconciler) FilterToQuery(candidates []labels.APIIdentity, force bool) []labels.APIIdentity {
	out := make([]labels.APIIdentity, 0, len(candidates))
	seen := make(map[labels.APIIdentity]bool, len(candidates))
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !force && r.cache.Has(id) {
			continue
		}
		out = append(out, id)
	}
	sortIdentities(out)
	return out
}

// ParseResponses decodes and validates every response. Malformed responses
// and invalid records are logged and skipped.
func (r *Reconciler) ParseResponses(responses []dispatcher.Response) []labels.LabelRecord {
	var records []labels.LabelRecord
	for _, resp := range responses {
		records = append(records, r.parseOne(resp.Start, resp.Text)...)
	}
	return records
}

func (r *Reconciler) parseOne(batch int, text string) []labels.LabelRecord {
	raws, err := ParseResponse(batch, text)
	if err != nil {
		var malformed *taintioErrors.MalformedResponseError
		if errors.As(err, &malformed) {
			r.logger.Warn("discarding unparseable model response", "batch", batch, "error", err, "raw", truncate(text, 500))
			return nil
		}
		r.logger.Error("unexpected parse failure", "batch", batch, "error", err)
		return nil
	}

	records := make([]labels.LabelRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := raw.Promote(r.eco, r.defaultType)
		if err != nil {
			r.logger.Debug("skipping label record", "batch", batch, "reason", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// MergeAndCache decides the label of every candidate. A fresh record wins
// over the cache; a queried candidate the model did not return becomes none.
// Candidates ending up as none are left out of the result. The cache is
// updated in memory and written once.
func (r *Reconciler) MergeAndCache(candidates, queried []labels.APIIdentity, fresh []labels.LabelRecord) ([]labels.LabelRecord, error) {
	freshByKey := make(map[labels.APIIdentity]labels.LabelRecord, len(fresh))
	for _, rec := range fresh {
		key := r.cache.Key(rec.Identity)
		if _, ok := freshByKey[key]; ok {
			continue
		}
		freshByKey[key] = rec
	}
	wasQueried := make(map[labels.APIIdentity]bool, len(queried))
	for _, id := range queried {
		wasQueried[r.cache.Key(id)] = true
	}

	var merged []labels.LabelRecord
	matched := 0
	seen := make(map[labels.APIIdentity]bool, len(candidates))
	for _, id := range candidates {
		key := r.cache.Key(id)
		if seen[key] {
			continue
		}
		seen[key] = true

		if rec, ok := freshByKey[key]; ok {
			matched++
			r.cache.Put(rec)
			if rec.Type != labels.None {
				merged = append(merged, rec)
			}
			continue
		}

		cached, inCache := r.cache.Get(id)
		switch {
		case wasQueried[key] && inCache:
			r.cache.Put(cached.WithType(labels.None))
		case wasQueried[key] || !inCache:
			r.cache.Put(labels.LabelRecord{Identity: id, Type: labels.None})
		case cached.Type != labels.None:
			merged = append(merged, cached)
		}
	}

	if unmatched := len(freshByKey) - matched; unmatched > 0 {
		r.logger.Debug("model returned labels for unknown candidates", "count", unmatched)
	}
	r.logger.Info("labels reconciled", "candidates", len(seen), "labelled", len(merged), "fresh", len(fresh), "cache", r.cache.Len())

	if err := r.cache.Save(); err != nil {
		return merged, err
	}
	return merged, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
