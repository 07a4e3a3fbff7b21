// Package classifier records human labels for sampled findings and derives
// true-positive rate estimates from them. Labels are never inferred.
package classifier

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/storage"
	"go.uber.org/zap"
)

// Classifier owns the label set. It is safe for concurrent use.
type Classifier struct {
	mu     sync.Mutex
	store  storage.LabelStore
	labels map[string]models.LabelRecord
	logger *zap.Logger
	actor  string
	now    func() time.Time
}

// Option configures a Classifier
type Option func(*Classifier)

// WithActor names who is labeling in audit records
func WithActor(actor string) Option {
	return func(c *Classifier) { c.actor = actor }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// New loads the current labels from store
func New(store storage.LabelStore, logger *zap.Logger, opts ...Option) (*Classifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	labels, err := store.LoadLabels()
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	c.labels = labels
	return c, nil
}

// RecordLabel sets the label for f. Re-labeling overwrites the previous
// label and every call, including a repeat of the current label, appends an
// audit entry.
func (c *Classifier) RecordLabel(f models.Finding, label models.Label) error {
	if _, err := models.ParseLabel(string(label)); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fp := f.Fingerprint()
	previous := models.LabelUnclassified
	old, hadOld := c.labels[fp]
	if hadOld {
		previous = old.Label
	}

	at := c.now().UTC()
	entry := models.LabelAudit{
		ID:          uuid.NewString(),
		Time:        at,
		Actor:       c.actor,
		Fingerprint: fp,
		RuleID:      f.RuleID,
		Previous:    previous,
		Label:       label,
	}

	c.labels[fp] = models.NewLabelRecord(f, label, at)
	if err := c.store.SaveLabels(c.labels); err != nil {
		c.restore(fp, old, hadOld)
		return fmt.Errorf("save labels: %w", err)
	}
	if err := c.store.AppendAudit(entry); err != nil {
		c.restore(fp, old, hadOld)
		if rerr := c.store.SaveLabels(c.labels); rerr != nil {
			c.logger.Error("label rollback failed", zap.String("fingerprint", fp), zap.Error(rerr))
		}
		return fmt.Errorf("append audit: %w", err)
	}

	c.logger.Info("label recorded",
		zap.String("audit_id", entry.ID),
		zap.String("fingerprint", fp),
		zap.String("rule_id", f.RuleID),
		zap.String("previous", string(previous)),
		zap.String("label", string(label)),
		zap.String("actor", c.actor),
	)
	return nil
}

// restore puts back the in-memory label held before a failed write
func (c *Classifier) restore(fp string, old models.LabelRecord, hadOld bool) {
	if hadOld {
		c.labels[fp] = old
	} else {
		delete(c.labels, fp)
	}
}

// LabelFor returns the current label of f, or unclassified
func (c *Classifier) LabelFor(f models.Finding) models.Label {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.labels[f.Fingerprint()]; ok {
		return r.Label
	}
	return models.LabelUnclassified
}

// EstimateRate computes the true-positive rate for ruleID from the current
// labels. Unclassified labels are not part of the sample. With no labeled
// samples the rate is nil.
func (c *Classifier) EstimateRate(ruleID string) models.RateEstimate {
	c.mu.Lock()
	defer c.mu.Unlock()

	est := models.RateEstimate{RuleID: ruleID}
	for _, r := range c.labels {
		if r.RuleID != ruleID || r.Label == models.LabelUnclassified {
			continue
		}
		est.SampleSize++
		if r.Label == models.LabelTruePositive {
			est.TruePositiveCount++
		}
	}
	if est.SampleSize > 0 {
		rate := float64(est.TruePositiveCount) / float64(est.SampleSize)
		est.EstimatedRate = &rate
	}
	return est
}

// EstimateAll estimates every rule in ruleIDs, in the given order
func (c *Classifier) EstimateAll(ruleIDs []string) []models.RateEstimate {
	out := make([]models.RateEstimate, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		out = append(out, c.EstimateRate(id))
	}
	return out
}

// LabeledRules returns the sorted ids of rules that have at least one label
func (c *Classifier) LabeledRules() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool)
	for _, r := range c.labels {
		seen[r.RuleID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Labels returns every label record sorted by fingerprint
func (c *Classifier) Labels() []models.LabelRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.LabelRecord, 0, len(c.labels))
	for _, r := range c.labels {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}
