package aggregator

import (
	"hash/fnv"
	"math/rand/v2"
	"sort"

	"github.com/ppiankov/guardscan/internal/models"
)

const (
	// DefaultSampleSize caps AggregateResult.Sample
	DefaultSampleSize = 10

	// DefaultSeed makes unseeded runs reproducible
	DefaultSeed int64 = 1
)

// Options controls deduplication and sampling
type Options struct {
	SampleSize int
	Seed       int64
}

// Result is the output of Aggregate
type Result struct {
	ByKey   map[models.AggregateKey]*models.AggregateResult
	Keys    []models.AggregateKey // sorted by repository, then rule
	Summary Summary
}

// Summary carries deduplicated counts across all keys
type Summary struct {
	TotalFindings      int
	DuplicatesDropped  int
	FindingsByRule     map[string]int
	FindingsByCategory map[string]int
	FindingsBySeverity map[string]int
}

// Aggregator collapses findings and draws per-key samples
type Aggregator struct {
	sampleSize int
	seed       int64
	rules      map[string]models.Rule
}

// New creates an aggregator. rules supplies category and severity for the
// summary; findings for unknown rules are still counted.
func New(rules []models.Rule, opts Options) *Aggregator {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	byID := make(map[string]models.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}
	return &Aggregator{
		sampleSize: opts.SampleSize,
		seed:       opts.Seed,
		rules:      byID,
	}
}

// Aggregate deduplicates findings and groups them per (rule, repository).
// The result depends only on the set of findings, never their order.
func (a *Aggregator) Aggregate(findings []models.Finding) *Result {
	unique := a.collapseMultiline(Dedup(findings))

	groups := make(map[models.AggregateKey][]models.Finding)
	for _, f := range unique {
		key := models.AggregateKey{RuleID: f.RuleID, RepositoryID: f.RepositoryID}
		groups[key] = append(groups[key], f)
	}

	result := &Result{
		ByKey: make(map[models.AggregateKey]*models.AggregateResult, len(groups)),
		Keys:  make([]models.AggregateKey, 0, len(groups)),
		Summary: Summary{
			DuplicatesDropped:  len(findings) - len(unique),
			FindingsByRule:     make(map[string]int),
			FindingsByCategory: make(map[string]int),
			FindingsBySeverity: make(map[string]int),
		},
	}

	for key, group := range groups {
		result.ByKey[key] = &models.AggregateResult{
			Key:          key,
			FindingCount: len(group),
			Sample:       Sample(group, a.sampleSize, a.seed, key),
		}
		result.Keys = append(result.Keys, key)
	}
	SortKeys(result.Keys)

	a.calculateSummary(result)
	return result
}

// calculateSummary computes summary statistics from the aggregates
func (a *Aggregator) calculateSummary(result *Result) {
	for _, key := range result.Keys {
		count := result.ByKey[key].FindingCount
		result.Summary.TotalFindings += count
		result.Summary.FindingsByRule[key.RuleID] += count

		rule, ok := a.rules[key.RuleID]
		if !ok {
			continue
		}
		result.Summary.FindingsByCategory[string(rule.Category)] += count
		result.Summary.FindingsBySeverity[rule.Severity] += count
	}
}

// Dedup drops findings that share rule, repository, file, line and column,
// returning the survivors in canonical order. When two duplicates carry
// different excerpts the lexically smaller one is kept.
func Dedup(findings []models.Finding) []models.Finding {
	seen := make(map[string]int, len(findings))
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		fp := f.Fingerprint()
		if idx, ok := seen[fp]; ok {
			if f.MatchedText < out[idx].MatchedText {
				out[idx] = f
			}
			continue
		}
		seen[fp] = len(out)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// collapseMultiline keeps one finding per matched line for multiline rules,
// so their counts are distinct lines rather than regex matches. findings must
// be in canonical order; the smallest column on each line survives.
func (a *Aggregator) collapseMultiline(findings []models.Finding) []models.Finding {
	type lineKey struct {
		rule, repo, file string
		line             int
	}
	seen := make(map[lineKey]bool)
	out := findings[:0]
	for _, f := range findings {
		if a.rules[f.RuleID].Multiline {
			k := lineKey{f.RuleID, f.RepositoryID, f.FilePath, f.LineNumber}
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, f)
	}
	return out
}

// Sample draws up to n findings from group. The draw depends only on the
// contents of group, seed and key, and the sample is returned in file, line,
// column order.
func Sample(group []models.Finding, n int, seed int64, key models.AggregateKey) []models.Finding {
	candidates := make([]models.Finding, len(group))
	copy(candidates, group)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })

	if len(candidates) <= n {
		return candidates
	}

	rng := rand.New(rand.NewPCG(uint64(seed), keyHash(key)))
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	sample := candidates[:n:n]
	sort.Slice(sample, func(i, j int) bool { return sample[i].Less(sample[j]) })
	return sample
}

func keyHash(key models.AggregateKey) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key.RepositoryID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.RuleID))
	return h.Sum64()
}

// SortKeys orders keys by repository, then rule
func SortKeys(keys []models.AggregateKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RepositoryID != keys[j].RepositoryID {
			return keys[i].RepositoryID < keys[j].RepositoryID
		}
		return keys[i].RuleID < keys[j].RuleID
	})
}
