// Package grouping partitions photos into items by perceptual similarity.
package grouping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/lehigh-university-libraries/photogroup/internal/fingerprint"
	"golang.org/x/sync/errgroup"
)

const (
	// MultiConfidence is assigned to groups with more than one photo.
	MultiConfidence = 0.85
	// SingletonConfidence is a placeholder for groups of one.
	SingletonConfidence = 0.5
)

// ErrInvalidThreshold is returned for thresholds outside [0,1].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

// Photo identifies one input photo.
type Photo struct {
	ID   string `json:"id" yaml:"id"`
	Path string `json:"path" yaml:"path"`
}

// PhotoGroup is a set of photos believed to show the same item. The first
// photo is the seed the others were compared against.
type PhotoGroup struct {
	ID           string   `json:"id" yaml:"id"`
	Photos       []string `json:"photos" yaml:"photos"`
	PrimaryPhoto string   `json:"primary_photo" yaml:"primary_photo"`
	Confidence   float64  `json:"confidence" yaml:"confidence"`
}

// FingerprintFunc computes the fingerprint of the photo at path.
type FingerprintFunc func(path string) (fingerprint.Fingerprint, error)

// Observer receives grouping events. Metrics implement it; nil is allowed.
type Observer interface {
	PhotoHashed()
	DecodeFailed()
	GroupFormed(size int)
}

// Grouper fingerprints photos and clusters them.
type Grouper struct {
	// Fingerprint defaults to fingerprint.HashFile.
	Fingerprint FingerprintFunc
	// Concurrency bounds parallel decoding; <= 0 means runtime.NumCPU().
	Concurrency int
	Observer    Observer
}

// New returns a Grouper that decodes from disk with the given concurrency.
func New(concurrency int) *Grouper {
	return &Grouper{
		Fingerprint: fingerprint.HashFile,
		Concurrency: concurrency,
	}
}

// GroupPaths groups photos identified by their paths.
func (g *Grouper) GroupPaths(ctx context.Context, paths []string, threshold float64) ([]PhotoGroup, error) {
	photos := make([]Photo, len(paths))
	for i, p := range paths {
		photos[i] = Photo{ID: p, Path: p}
	}
	return g.Group(ctx, photos, threshold)
}

// Group fingerprints every photo and partitions them with Cluster. Any
// decode failure aborts the call; no partial result is returned.
func (g *Grouper) Group(ctx context.Context, photos []Photo, threshold float64) ([]PhotoGroup, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return []PhotoGroup{}, nil
	}

	slog.Debug("Fingerprinting photos", "count", len(photos), "concurrency", g.concurrency())

	hashes, err := g.fingerprints(ctx, photos)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(photos))
	for i, p := range photos {
		ids[i] = p.ID
	}

	groups, err := Cluster(hashes, ids, threshold)
	if err != nil {
		return nil, err
	}

	if g.Observer != nil {
		for _, group := range groups {
			g.Observer.GroupFormed(len(group.Photos))
		}
	}

	slog.Info("Grouped photos", "photos", len(photos), "groups", len(groups), "threshold", threshold)
	return groups, nil
}

// fingerprints decodes in parallel and returns hashes in input order. A
// failure stops photos after it from being decoded but never those before
// it, so the error reported is always the one a sequential scan would hit.
func (g *Grouper) fingerprints(ctx context.Context, photos []Photo) ([]fingerprint.Fingerprint, error) {
	hashFn := g.Fingerprint
	if hashFn == nil {
		hashFn = fingerprint.HashFile
	}

	hashes := make([]fingerprint.Fingerprint, len(photos))
	errs := make([]error, len(photos))
	firstFailed := newLowWater(len(photos))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency())

	for i, photo := range photos {
		eg.Go(func() error {
			if ctx.Err() != nil || i > firstFailed.load() {
				return nil
			}
			h, err := hashFn(photo.Path)
			if err != nil {
				if g.Observer != nil {
					g.Observer.DecodeFailed()
				}
				firstFailed.lower(i)
				errs[i] = err
				return err
			}
			if g.Observer != nil {
				g.Observer.PhotoHashed()
			}
			hashes[i] = h
			return nil
		})
	}

	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("grouping cancelled: %w", err)
	}
	for i, err := range errs {
		if err != nil {
			slog.Error("Failed to fingerprint photo", "id", photos[i].ID, "path", photos[i].Path, "err", err)
			return nil, err
		}
	}
	return hashes, nil
}

// lowWater tracks the smallest index reported to it.
type lowWater struct {
	v atomic.Int64
}

func newLowWater(initial int) *lowWater {
	lw := &lowWater{}
	lw.v.Store(int64(initial))
	return lw
}

func (lw *lowWater) load() int {
	return int(lw.v.Load())
}

func (lw *lowWater) lower(i int) {
	for {
		cur := lw.v.Load()
		if int64(i) >= cur || lw.v.CompareAndSwap(cur, int64(i)) {
			return
		}
	}
}

func (g *Grouper) concurrency() int {
	if g.Concurrency <= 0 {
		return runtime.NumCPU()
	}
	return g.Concurrency
}

// Cluster greedily partitions fingerprints. Each unassigned photo, in input
// order, seeds a new group and absorbs every later unassigned photo whose
// similarity to the seed is at least threshold. Members are compared to the
// seed only, never to each other.
func Cluster(hashes []fingerprint.Fingerprint, ids []string, threshold float64) ([]PhotoGroup, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if len(hashes) != len(ids) {
		return nil, fmt.Errorf("got %d fingerprints for %d photos", len(hashes), len(ids))
	}

	groups := []PhotoGroup{}
	assigned := make([]bool, len(hashes))

	for i := range hashes {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []string{ids[i]}

		for j := i + 1; j < len(hashes); j++ {
			if assigned[j] {
				continue
			}
			if fingerprint.Similarity(hashes[i], hashes[j]) >= threshold {
				members = append(members, ids[j])
				assigned[j] = true
			}
		}

		confidence := SingletonConfidence
		if len(members) > 1 {
			confidence = MultiConfidence
		}

		groups = append(groups, PhotoGroup{
			ID:           fmt.Sprintf("item-%d", len(groups)+1),
			Photos:       members,
			PrimaryPhoto: members[0],
			Confidence:   confidence,
		})
	}

	return groups, nil
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return nil
}
