package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/shelf/internal/discovery"
	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/scanstate"
	"github.com/llehouerou/shelf/internal/tags"
)

// Extractor reads the metadata of one audio file. artworkHint names a
// folder image to use when the file has no embedded artwork.
type Extractor interface {
	Extract(ctx context.Context, path, artworkHint string) (*tags.Metadata, error)
}

// Store is the part of the library the reconciler writes to.
type Store interface {
	ApplyBatch(ctx context.Context, folderID int64, b library.Batch) (library.BatchResult, error)
}

// ArtworkNormalizer prepares artwork for storage on albums and artists.
type ArtworkNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// DefaultWorkers is the extraction parallelism when none is configured.
const DefaultWorkers = 8

// Reconciler processes chunks of discovered files.
type Reconciler struct {
	store     Store
	extractor Extractor
	artwork   ArtworkNormalizer
	workers   int
	logger    *zap.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithWorkers bounds the number of concurrent extractions per chunk.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithArtwork normalizes artwork before it is stored on aggregates.
func WithArtwork(n ArtworkNormalizer) Option {
	return func(r *Reconciler) { r.artwork = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Reconciler writing to store and reading files with extractor.
func New(store Store, extractor Extractor, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		extractor: extractor,
		workers:   DefaultWorkers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Chunk is one unit of work: files of a single folder with the stored
// state of that folder.
type Chunk struct {
	FolderID int64
	Files    []discovery.File
	Existing map[string]library.Existing
	Hard     bool
}

// ChunkResult counts the outcomes of a chunk.
type ChunkResult struct {
	Inserted  int
	Updated   int
	Skipped   int
	Failed    int
	Extracted int
}

type job struct {
	file     discovery.File
	mtime    int64
	action   Action
	existing *library.Existing

	meta *tags.Metadata
	err  error
}

// Process reconciles one chunk. Extraction fans out to at most the
// configured number of workers; the resulting writes are applied in a single
// transaction. Counters in folder and global are updated as files complete.
//
// Extraction failures are recorded per file and never fail the chunk. A
// store failure fails every write of the chunk and is returned so the
// caller can decide whether to continue. A cancelled context abandons the
// chunk before anything is written.
func (r *Reconciler) Process(ctx context.Context, c Chunk, folder *scanstate.FolderState, global *scanstate.Global) (ChunkResult, error) {
	var res ChunkResult

	jobs := make([]*job, 0, len(c.Files))
	skipped := 0
	for _, f := range c.Files {
		mtime := f.ModTime.UnixNano()
		var existing *library.Existing
		if e, ok := c.Existing[f.Path]; ok {
			existing = &e
		}
		action := Decide(existing, mtime, c.Hard)
		if !action.NeedsExtraction() {
			skipped++
			continue
		}
		jobs = append(jobs, &job{file: f, mtime: mtime, action: action, existing: existing})
	}
	if skipped > 0 {
		folder.RecordSkip(skipped)
		addProcessed(global, skipped)
		res.Skipped += skipped
	}

	r.extractAll(ctx, jobs, global)
	res.Extracted = len(jobs)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var batch library.Batch
	var pending []*job
	for _, j := range jobs {
		if j.err != nil {
			r.logger.Warn("extraction failed", zap.String("path", j.file.Path), zap.Error(j.err))
			folder.RecordFailure(j.file.Path, j.err)
			res.Failed++
			continue
		}

		fields, err := library.FieldsFromMetadata(j.meta)
		if err != nil {
			folder.RecordFailure(j.file.Path, err)
			res.Failed++
			continue
		}

		if j.action == ActionCompare && fields == j.existing.Fields {
			// Content unchanged: remember the new timestamp so the file is
			// not extracted again next time
			batch.Touches = append(batch.Touches, library.Touch{ID: j.existing.ID, Mtime: j.mtime})
			continue
		}

		w := library.TrackWrite{
			Path:    j.file.Path,
			Mtime:   j.mtime,
			Fields:  fields,
			Artwork: r.normalizeArtwork(j),
		}
		if j.existing != nil {
			w.ID = j.existing.ID
		}
		batch.Writes = append(batch.Writes, w)
		pending = append(pending, j)
	}

	if len(batch.Writes) == 0 && len(batch.Touches) == 0 {
		return res, nil
	}

	out, err := r.store.ApplyBatch(ctx, c.FolderID, batch)
	if err != nil {
		for _, j := range pending {
			folder.RecordFailure(j.file.Path, err)
		}
		res.Failed += len(pending)
		folder.RecordSkip(len(batch.Touches))
		res.Skipped += len(batch.Touches)
		return res, fmt.Errorf("write chunk: %w", err)
	}

	folder.RecordSkip(len(batch.Touches))
	res.Skipped += len(batch.Touches)

	found := 0
	for i, j := range pending {
		if out.IDs[i] == 0 {
			continue
		}
		if j.existing == nil {
			folder.RecordInsert()
			res.Inserted++
			found++
		} else {
			folder.RecordUpdate()
			res.Updated++
		}
	}
	for _, rej := range out.Rejected {
		r.logger.Error("track write rejected", zap.String("path", rej.Path), zap.Error(rej.Err))
		folder.RecordFailure(rej.Path, rej.Err)
		res.Failed++
	}
	if global != nil && found > 0 {
		global.AddFound(found)
	}

	return res, nil
}

// extractAll runs the extractor over jobs with bounded parallelism.
func (r *Reconciler) extractAll(ctx context.Context, jobs []*job, global *scanstate.Global) {
	if len(jobs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				j.err = err
				return nil
			}
			j.meta, j.err = r.extractor.Extract(ctx, j.file.Path, j.file.CoverHint)
			if j.err == nil && j.meta == nil {
				j.err = fmt.Errorf("%s: no metadata", j.file.Path)
			}
			addProcessed(global, 1)
			// Errors stay with the file; one bad file never stops the others
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) normalizeArtwork(j *job) []byte {
	if len(j.meta.Artwork) == 0 {
		return nil
	}
	if r.artwork == nil {
		return j.meta.Artwork
	}
	data, err := r.artwork.Normalize(j.meta.Artwork)
	if err != nil {
		r.logger.Debug("artwork not usable", zap.String("path", j.file.Path), zap.Error(err))
		return nil
	}
	return data
}

func addProcessed(global *scanstate.Global, n int) {
	if global != nil {
		global.AddProcessed(n)
	}
}
