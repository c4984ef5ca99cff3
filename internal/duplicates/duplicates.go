// Package duplicates groups tracks that hold the same recording and picks
// the best encoded one of each group as primary.
package duplicates

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/tags"
)

// DefaultTolerance is the largest duration difference between two tracks
// of the same group.
const DefaultTolerance = 2 * time.Second

// Store is the part of the library the detector reads and writes.
type Store interface {
	DuplicateCandidates(ctx context.Context) ([]library.DuplicateCandidate, error)
	ReplaceDuplicateGroups(ctx context.Context, groups []library.DuplicateGroup) error
}

// Result summarizes one detection pass.
type Result struct {
	Groups     int
	Duplicates int // non-primary members across all groups
}

// Detector recomputes the duplicate graph of the whole library.
type Detector struct {
	store     Store
	tolerance time.Duration
	logger    *zap.Logger
	newID     func() string
}

// Option configures a Detector.
type Option func(*Detector)

// WithTolerance sets the duration tolerance.
func WithTolerance(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.tolerance = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(det *Detector) {
		if l != nil {
			det.logger = l
		}
	}
}

// New returns a Detector over store.
func New(store Store, opts ...Option) *Detector {
	d := &Detector{
		store:     store,
		tolerance: DefaultTolerance,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run reads every track, groups them and replaces the stored markings.
// Tracks left in no group lose any previous marking.
func (d *Detector) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	candidates, err := d.store.DuplicateCandidates(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load duplicate candidates: %w", err)
	}

	groups := Group(candidates, d.tolerance, d.newID)
	if err := d.store.ReplaceDuplicateGroups(ctx, groups); err != nil {
		return Result{}, fmt.Errorf("store duplicate groups: %w", err)
	}

	res := Result{Groups: len(groups)}
	for _, g := range groups {
		res.Duplicates += len(g.DuplicateIDs)
	}
	d.logger.Debug("duplicate detection done",
		zap.Int("tracks", len(candidates)),
		zap.Int("groups", res.Groups),
		zap.Int("duplicates", res.Duplicates),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Key returns the identity two tracks must share to be duplicates: the
// normalized title without featuring qualifiers and the normalized primary
// artist. ok is false when either part is empty.
func Key(title, artist string) (key string, ok bool) {
	t := library.NormalizeName(library.StripFeaturing(title))
	a := library.NormalizeName(library.PrimaryArtist(artist))
	if t == "" || a == "" {
		return "", false
	}
	return t + "\x00" + a, true
}

// Format tiers of the quality score.
const (
	tierLossless = 3000
	tierOpus     = 1600
	tierAAC      = 1500
	tierVorbis   = 1400
	tierMP3      = 1000
	tierOther    = 500
)

func formatTier(codec string) int {
	switch {
	case tags.IsLossless(codec):
		return tierLossless
	case codec == tags.CodecOpus:
		return tierOpus
	case codec == tags.CodecAAC, codec == tags.CodecM4A:
		return tierAAC
	case codec == tags.CodecVorbis:
		return tierVorbis
	case codec == tags.CodecMP3:
		return tierMP3
	default:
		return tierOther
	}
}

// Score ranks the encoding quality of a track. Higher is better. The
// format tier dominates; bitrate, sample rate and bit depth order tracks
// of the same format.
func Score(c library.DuplicateCandidate) int {
	return formatTier(c.Codec) + c.Bitrate + c.SampleRate/100 + c.BitDepth*10
}

// better reports whether a ranks above b. Ties on score go to the larger
// file, then to the older track.
func better(a, b library.DuplicateCandidate) bool {
	if sa, sb := Score(a), Score(b); sa != sb {
		return sa > sb
	}
	if a.FileSize != b.FileSize {
		return a.FileSize > b.FileSize
	}
	return a.ID < b.ID
}

// Group clusters candidates into duplicate groups. Tracks sharing a Key
// are sorted by duration and chained while consecutive durations differ by
// at most tolerance. Every cluster of two or more tracks becomes a group
// whose primary is the best ranked member.
//
// A group keeps its primary's current group ID when no other group claimed
// it first; otherwise newID supplies one. The output is ordered by primary
// ID so the same input always yields the same groups.
func Group(candidates []library.DuplicateCandidate, tolerance time.Duration, newID func() string) []library.DuplicateGroup {
	byKey := make(map[string][]library.DuplicateCandidate)
	for _, c := range candidates {
		if key, ok := Key(c.Title, c.Artist); ok {
			byKey[key] = append(byKey[key], c)
		}
	}

	var clusters [][]library.DuplicateCandidate
	toleranceMs := tolerance.Milliseconds()
	for _, members := range byKey {
		if len(members) < 2 {
			continue
		}
		slices.SortFunc(members, func(a, b library.DuplicateCandidate) int {
			return cmp.Or(cmp.Compare(a.DurationMs, b.DurationMs), cmp.Compare(a.ID, b.ID))
		})

		current := []library.DuplicateCandidate{members[0]}
		for _, c := range members[1:] {
			if c.DurationMs-current[len(current)-1].DurationMs > toleranceMs {
				clusters = appendCluster(clusters, current)
				current = nil
			}
			current = append(current, c)
		}
		clusters = appendCluster(clusters, current)
	}

	groups := make([]library.DuplicateGroup, 0, len(clusters))
	primaries := make([]library.DuplicateCandidate, 0, len(clusters))
	for _, cluster := range clusters {
		best := cluster[0]
		for _, c := range cluster[1:] {
			if better(c, best) {
				best = c
			}
		}
		g := library.DuplicateGroup{PrimaryID: best.ID}
		for _, c := range cluster {
			if c.ID != best.ID {
				g.DuplicateIDs = append(g.DuplicateIDs, c.ID)
			}
		}
		slices.Sort(g.DuplicateIDs)
		groups = append(groups, g)
		primaries = append(primaries, best)
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Compare(groups[a].PrimaryID, groups[b].PrimaryID)
	})

	sorted := make([]library.DuplicateGroup, 0, len(groups))
	used := make(map[string]bool)
	for _, i := range order {
		g := groups[i]
		if id := primaries[i].GroupID; id != "" && !used[id] {
			g.ID = id
		} else {
			g.ID = newID()
		}
		used[g.ID] = true
		sorted = append(sorted, g)
	}
	return sorted
}

func appendCluster(clusters [][]library.DuplicateCandidate, c []library.DuplicateCandidate) [][]library.DuplicateCandidate {
	if len(c) < 2 {
		return clusters
	}
	return append(clusters, c)
}
