// Package ledger tracks the content hashes of accepted submissions so a
// dataset can only be rewarded once.
package ledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/service"
)

// Document is the stored ledger object.
type Document struct {
	LastUpdated time.Time `json:"lastUpdated"`
	Hashes      []string  `json:"hashes"`
}

// Options locates the ledger and bounds its store calls.
type Options struct {
	Bucket  string
	Key     string
	Timeout time.Duration
	Retry   service.RetryOptions
}

// DefaultOptions returns the production ledger location.
func DefaultOptions() Options {
	return Options{
		Bucket:  "vanatensordlp",
		Key:     "verified_hashes/hashes.json",
		Timeout: 10 * time.Second,
		Retry: service.RetryOptions{
			MaxAttempts:  5,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
		},
	}
}

// Ledger is a hash set stored as one JSON object and updated with
// compare-and-swap writes.
type Ledger struct {
	store service.ObjectStore
	now   func() time.Time
	opts  Options
}

// New creates a ledger over store.
func New(store service.ObjectStore, opts Options) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: ledger store is required", common.ErrMissingConfig)
	}
	if opts.Bucket == "" || opts.Key == "" {
		return nil, fmt.Errorf("%w: ledger bucket and key are required", common.ErrInvalidConfig)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Ledger{store: store, opts: opts, now: time.Now}, nil
}

// Hash returns the SHA-256 hex digest of the payload's canonical JSON form,
// so formatting and key order do not change the identity of a dataset.
func Hash(payload []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("failed to decode payload for hashing: %w", err)
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload for hashing: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// List returns every recorded digest. A ledger that was never written is empty.
func (l *Ledger) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	doc, _, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Hashes, nil
}

// Contains reports whether digest is recorded.
func (l *Ledger) Contains(ctx context.Context, digest string) (bool, error) {
	hashes, err := l.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(hashes, digest), nil
}

// Add records digest. It is idempotent and reports whether the ledger changed.
func (l *Ledger) Add(ctx context.Context, digest string) (bool, error) {
	return l.update(ctx, func(doc *Document) bool {
		if slices.Contains(doc.Hashes, digest) {
			return false
		}
		doc.Hashes = append(doc.Hashes, digest)
		return true
	})
}

// Remove deletes digest and reports whether the ledger changed.
func (l *Ledger) Remove(ctx context.Context, digest string) (bool, error) {
	return l.update(ctx, func(doc *Document) bool {
		i := slices.Index(doc.Hashes, digest)
		if i < 0 {
			return false
		}
		doc.Hashes = slices.Delete(doc.Hashes, i, i+1)
		return true
	})
}

// Check scores uniqueness: 1.0 if digest was not yet recorded (and records
// it), 0.0 if it was. Store failures score 0.0.
func (l *Ledger) Check(ctx context.Context, digest string) float64 {
	added, err := l.Add(ctx, digest)
	if err != nil {
		common.LogError(err, "Uniqueness ledger unavailable, scoring as duplicate", common.Fields{
			"bucket": l.opts.Bucket,
			"key":    l.opts.Key,
			"digest": digest,
		})
		return 0.0
	}
	if !added {
		common.LogInfo("Submission already recorded in ledger", common.Fields{"digest": digest})
		return 0.0
	}
	return 1.0
}

// update runs a read-modify-write cycle, retrying when another writer won
// the race. mutate returns false when no write is needed.
func (l *Ledger) update(ctx context.Context, mutate func(*Document) bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	var changed bool
	err := common.WithRetry(ctx, func() error {
		doc, version, err := l.load(ctx)
		if err != nil {
			return err
		}

		changed = mutate(&doc)
		if !changed {
			return nil
		}

		doc.LastUpdated = l.now().UTC()
		body, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return common.Permanent(fmt.Errorf("failed to encode ledger: %w", err))
		}

		opts := service.PutOptions{ContentType: "application/json"}
		if version == "" {
			opts.IfAbsent = true
		} else {
			opts.IfMatch = version
		}

		if _, err := l.store.PutObject(ctx, l.opts.Bucket, l.opts.Key, body, opts); err != nil {
			if errors.Is(err, common.ErrPreconditionFailed) {
				common.LogDebug("Ledger changed underneath us, retrying", common.Fields{"key": l.opts.Key})
			}
			if !common.IsRetryable(err) {
				return common.Permanent(fmt.Errorf("failed to write ledger: %w", err))
			}
			return fmt.Errorf("failed to write ledger: %w", err)
		}
		return nil
	}, l.opts.Retry)
	if err != nil {
		return false, err
	}
	return changed, nil
}

// load reads the ledger. A missing object is an empty ledger with no version.
func (l *Ledger) load(ctx context.Context) (Document, string, error) {
	obj, err := l.store.GetObject(ctx, l.opts.Bucket, l.opts.Key)
	if errors.Is(err, common.ErrNotFound) {
		return Document{Hashes: []string{}}, "", nil
	}
	if err != nil {
		return Document{}, "", fmt.Errorf("failed to read ledger: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(obj.Body, &doc); err != nil {
		return Document{}, "", common.Permanent(fmt.Errorf("ledger %s/%s is corrupt: %w", l.opts.Bucket, l.opts.Key, err))
	}
	if doc.Hashes == nil {
		doc.Hashes = []string{}
	}
	return doc, obj.Version, nil
}
