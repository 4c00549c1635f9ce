// Package reference loads the poisoned reference dataset: planted questions
// whose expected answers are known, used to catch tampered submissions.
package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/model"
	"github.com/Veraticus/the-proof-must-flow/internal/preference"
	"github.com/Veraticus/the-proof-must-flow/internal/service"
)

// Options locates the reference object.
type Options struct {
	Bucket   string
	Key      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// DefaultOptions returns the production reference location.
func DefaultOptions() Options {
	return Options{
		Bucket:   "vanatensorpoisondata",
		Key:      "poisin.json",
		Timeout:  10 * time.Second,
		CacheTTL: 15 * time.Minute,
	}
}

// Source fetches the reference from an object store.
type Source struct {
	store service.ObjectStore
	cache *answerCache
	opts  Options
}

var _ preference.ReferenceSource = (*Source)(nil)

// New creates a Source. Call Close to stop the cache sweeper.
func New(store service.ObjectStore, opts Options) (*Source, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: reference store is required", common.ErrMissingConfig)
	}
	if opts.Bucket == "" || opts.Key == "" {
		return nil, fmt.Errorf("%w: reference bucket and key are required", common.ErrInvalidConfig)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Source{store: store, opts: opts, cache: newAnswerCache(opts.CacheTTL)}, nil
}

// Fetch returns the planted answers keyed by record ID. Failures are not cached.
func (s *Source) Fetch(ctx context.Context) (map[string]model.Choice, error) {
	cacheKey := s.opts.Bucket + "/" + s.opts.Key
	if answers, ok := s.cache.get(cacheKey); ok {
		return answers, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	obj, err := s.store.GetObject(ctx, s.opts.Bucket, s.opts.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference %s: %w", cacheKey, err)
	}

	answers, err := Parse(obj.Body)
	if err != nil {
		return nil, err
	}

	s.cache.set(cacheKey, answers)
	common.LogDebug("Loaded poisoned reference", common.Fields{"key": cacheKey, "questions": len(answers)})
	return answers, nil
}

// Upload validates body and replaces the stored reference.
func (s *Source) Upload(ctx context.Context, body []byte) (int, error) {
	answers, err := Parse(body)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if _, err := s.store.PutObject(ctx, s.opts.Bucket, s.opts.Key, body, service.PutOptions{ContentType: "application/json"}); err != nil {
		return 0, fmt.Errorf("failed to upload reference: %w", err)
	}
	s.cache.invalidate(s.opts.Bucket + "/" + s.opts.Key)
	return len(answers), nil
}

// Close stops the cache sweeper.
func (s *Source) Close() {
	s.cache.close()
}

// Parse decodes a reference document: an array of records carrying at least
// uniqueID and chosen. When an ID repeats, the first answer wins.
func Parse(body []byte) (map[string]model.Choice, error) {
	var records []model.PreferenceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("reference is not an array of records: %w", err)
	}

	answers := make(map[string]model.Choice, len(records))
	for i, r := range records {
		if !r.UniqueID.Present() {
			return nil, fmt.Errorf("reference record %d: missing uniqueID", i)
		}
		if r.Chosen == nil {
			return nil, fmt.Errorf("reference record %d: missing chosen", i)
		}
		if _, seen := answers[r.UniqueID.Key()]; !seen {
			answers[r.UniqueID.Key()] = *r.Chosen
		}
	}
	return answers, nil
}
