package grouping

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/photogroup/internal/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGrouper(hashes map[string]fingerprint.Fingerprint) *Grouper {
	return &Grouper{
		Concurrency: 4,
		Fingerprint: func(path string) (fingerprint.Fingerprint, error) {
			h, ok := hashes[path]
			if !ok {
				return 0, &fingerprint.DecodeError{Path: path, Err: errors.New("unknown format")}
			}
			return h, nil
		},
	}
}

func memberIDs(groups []PhotoGroup) [][]string {
	out := make([][]string, len(groups))
	for i, g := range groups {
		out[i] = g.Photos
	}
	return out
}

func TestGroupPaths(t *testing.T) {
	hashes := map[string]fingerprint.Fingerprint{
		"a.jpg": 0x0,
		"b.jpg": 0xffffffffffffffff,
		"c.jpg": 0x1,                // 1 bit from a
		"d.jpg": 0xfffffffffffffffe, // 1 bit from b
		"e.jpg": 0x00000000ffffffff, // 32 bits from everything above
	}
	paths := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}

	tests := []struct {
		name      string
		threshold float64
		expected  [][]string
	}{
		{
			name:      "near duplicates collapse",
			threshold: 0.95,
			expected:  [][]string{{"a.jpg", "c.jpg"}, {"b.jpg", "d.jpg"}, {"e.jpg"}},
		},
		{
			name:      "exact threshold keeps only identical",
			threshold: 1.0,
			expected:  [][]string{{"a.jpg"}, {"b.jpg"}, {"c.jpg"}, {"d.jpg"}, {"e.jpg"}},
		},
		{
			name:      "zero threshold groups everything under first seed",
			threshold: 0.0,
			expected:  [][]string{{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}},
		},
		{
			name:      "half similarity boundary is inclusive",
			threshold: 0.5,
			expected:  [][]string{{"a.jpg", "c.jpg", "e.jpg"}, {"b.jpg", "d.jpg"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := fakeGrouper(hashes).GroupPaths(context.Background(), paths, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, memberIDs(groups))
			for i, g := range groups {
				assert.Equal(t, g.Photos[0], g.PrimaryPhoto)
				assert.Equal(t, fmt.Sprintf("item-%d", i+1), g.ID)
				if len(g.Photos) > 1 {
					assert.Equal(t, MultiConfidence, g.Confidence)
				} else {
					assert.Equal(t, SingletonConfidence, g.Confidence)
				}
			}
		})
	}
}

func TestGroupComparesAgainstSeedOnly(t *testing.T) {
	// b is within 2 bits of both a and c, but a and c are 4 bits apart.
	// At 62/64 only b joins a's group; c is not chained in through b.
	hashes := map[string]fingerprint.Fingerprint{
		"a": 0x0,
		"b": 0x3,
		"c": 0xf,
	}
	groups, err := fakeGrouper(hashes).GroupPaths(context.Background(), []string{"a", "b", "c"}, 62.0/64)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, memberIDs(groups))
}

func TestGroupPartition(t *testing.T) {
	hashes := map[string]fingerprint.Fingerprint{}
	var paths []string
	for i := 0; i < 40; i++ {
		p := filepath.Join("photos", string(rune('A'+i)))
		hashes[p] = fingerprint.Fingerprint(uint64(i*i) * 0x9e3779b97f4a7c15)
		paths = append(paths, p)
	}

	for _, threshold := range []float64{0, 0.25, 0.5, 0.6, 0.75, 0.9, 1} {
		groups, err := fakeGrouper(hashes).GroupPaths(context.Background(), paths, threshold)
		require.NoError(t, err)

		seen := map[string]int{}
		var seeds []string
		for _, g := range groups {
			require.NotEmpty(t, g.Photos)
			seeds = append(seeds, g.PrimaryPhoto)
			for _, p := range g.Photos {
				seen[p]++
			}
		}
		assert.Len(t, seen, len(paths))
		for p, n := range seen {
			assert.Equal(t, 1, n, "photo %s appears %d times", p, n)
		}

		// Seeds appear in input order.
		last := -1
		for _, s := range seeds {
			idx := indexOf(paths, s)
			assert.Greater(t, idx, last)
			last = idx
		}
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestGroupEmptyAndSingleton(t *testing.T) {
	g := fakeGrouper(map[string]fingerprint.Fingerprint{"only.jpg": 42})

	for _, threshold := range []float64{0, 0.5, 1} {
		groups, err := g.GroupPaths(context.Background(), nil, threshold)
		require.NoError(t, err)
		assert.NotNil(t, groups)
		assert.Empty(t, groups)
	}

	groups, err := g.GroupPaths(context.Background(), []string{"only.jpg"}, 0.9)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, PhotoGroup{
		ID:           "item-1",
		Photos:       []string{"only.jpg"},
		PrimaryPhoto: "only.jpg",
		Confidence:   SingletonConfidence,
	}, groups[0])
}

func TestGroupInvalidThreshold(t *testing.T) {
	g := fakeGrouper(nil)
	for _, threshold := range []float64{-0.1, 1.01} {
		_, err := g.GroupPaths(context.Background(), []string{"x"}, threshold)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}
}

func TestGroupAbortsOnDecodeFailure(t *testing.T) {
	hashes := map[string]fingerprint.Fingerprint{"a.jpg": 1, "c.jpg": 2}
	g := fakeGrouper(hashes)
	g.Concurrency = 1

	groups, err := g.GroupPaths(context.Background(), []string{"a.jpg", "broken.heic", "c.jpg"}, 0.9)
	assert.Nil(t, groups)

	var decodeErr *fingerprint.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "broken.heic", decodeErr.Path)
}

func TestGroupReportsEarliestDecodeFailure(t *testing.T) {
	paths := []string{"ok-1", "bad-1", "ok-2", "bad-2", "bad-3"}
	g := &Grouper{
		Concurrency: 8,
		Fingerprint: func(path string) (fingerprint.Fingerprint, error) {
			switch path {
			case "ok-1", "ok-2":
				return 1, nil
			case "bad-1":
				// Let the later failures land first.
				time.Sleep(time.Millisecond)
			}
			return 0, &fingerprint.DecodeError{Path: path, Err: errors.New("corrupt")}
		},
	}

	for run := 0; run < 200; run++ {
		_, err := g.GroupPaths(context.Background(), paths, 0.9)
		var decodeErr *fingerprint.DecodeError
		require.True(t, errors.As(err, &decodeErr), "run %d: %v", run, err)
		require.Equal(t, "bad-1", decodeErr.Path, "run %d", run)
	}
}

func TestGroupCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fakeGrouper(map[string]fingerprint.Fingerprint{"a": 1}).GroupPaths(ctx, []string{"a"}, 0.9)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingObserver struct {
	mu     sync.Mutex
	hashed int
	failed int
	formed []int
}

func (o *countingObserver) PhotoHashed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hashed++
}

func (o *countingObserver) DecodeFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *countingObserver) GroupFormed(n int) {
	o.formed = append(o.formed, n)
}

func TestGroupObserver(t *testing.T) {
	obs := &countingObserver{}
	g := fakeGrouper(map[string]fingerprint.Fingerprint{"a": 0, "b": 0, "c": ^fingerprint.Fingerprint(0)})
	g.Observer = obs

	_, err := g.GroupPaths(context.Background(), []string{"a", "b", "c"}, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 3, obs.hashed)
	assert.Equal(t, 0, obs.failed)
	assert.Equal(t, []int{2, 1}, obs.formed)
}

func TestClusterLengthMismatch(t *testing.T) {
	_, err := Cluster([]fingerprint.Fingerprint{1, 2}, []string{"a"}, 0.5)
	assert.Error(t, err)
}

func TestGroupIdenticalImagesOnDisk(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 4), B: uint8(x + y), A: 255})
		}
	}

	var paths []string
	for _, name := range []string{"front.png", "front-copy.png"} {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
		paths = append(paths, path)
	}

	groups, err := New(2).GroupPaths(context.Background(), paths, 0.99)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, paths, groups[0].Photos)
	assert.Equal(t, paths[0], groups[0].PrimaryPhoto)
	assert.Equal(t, MultiConfidence, groups[0].Confidence)
}
