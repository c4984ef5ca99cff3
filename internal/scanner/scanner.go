// Package scanner coordinates library scans: it walks registered folders,
// feeds their files through the reconciler in chunks, runs duplicate
// detection once a batch is over and reports progress to a Sink.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/shelf/internal/access"
	"github.com/llehouerou/shelf/internal/artwork"
	"github.com/llehouerou/shelf/internal/config"
	dbutil "github.com/llehouerou/shelf/internal/db"
	"github.com/llehouerou/shelf/internal/discovery"
	"github.com/llehouerou/shelf/internal/duplicates"
	"github.com/llehouerou/shelf/internal/errmsg"
	"github.com/llehouerou/shelf/internal/library"
	"github.com/llehouerou/shelf/internal/reconcile"
	"github.com/llehouerou/shelf/internal/scanstate"
)

// ErrAlreadyScanning is returned when every requested folder is already
// part of a running or waiting scan.
var ErrAlreadyScanning = errors.New("folder is already being scanned")

// Config holds the scanner settings.
type Config struct {
	BatchSize         int
	Workers           int
	ProgressInterval  time.Duration
	AutoScan          string
	Interval          time.Duration
	Watch             bool
	WatchDelay        time.Duration
	Supported         []string
	Unsupported       []string
	DurationTolerance time.Duration
	ArtworkMaxSize    int
}

// DefaultWatchDelay is how long the watcher waits for filesystem events to
// settle before refreshing a folder.
const DefaultWatchDelay = 5 * time.Second

// ConfigFrom builds the scanner settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	scan := cfg.GetScanConfig()
	return Config{
		BatchSize:         scan.BatchSize,
		Workers:           scan.Workers,
		ProgressInterval:  scan.ProgressInterval(),
		AutoScan:          scan.AutoScan,
		Interval:          scan.Interval(),
		Watch:             scan.Watch,
		WatchDelay:        DefaultWatchDelay,
		Supported:         scan.SupportedExtensions,
		Unsupported:       scan.UnsupportedExtensions,
		DurationTolerance: cfg.DurationTolerance(),
		ArtworkMaxSize:    cfg.ArtworkMaxSize(),
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Workers <= 0 {
		c.Workers = reconcile.DefaultWorkers
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = scanstate.DefaultInterval
	}
	if c.AutoScan == "" {
		c.AutoScan = config.AutoScanLaunchOnce
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.WatchDelay <= 0 {
		c.WatchDelay = DefaultWatchDelay
	}
	if len(c.Supported) == 0 {
		c.Supported = config.DefaultSupportedExtensions
	}
	if len(c.Unsupported) == 0 {
		c.Unsupported = config.DefaultUnsupportedExtensions
	}
	if c.DurationTolerance <= 0 {
		c.DurationTolerance = duplicates.DefaultTolerance
	}
	return c
}

// Scanner runs scans against a library. Batches run one at a time; a
// folder is never part of two batches at once.
type Scanner struct {
	lib        *library.Library
	cfg        Config
	classifier *discovery.Classifier
	reconciler *reconcile.Reconciler
	detector   *duplicates.Detector
	access     access.Provider
	sink       Sink
	logger     *zap.Logger

	now      func() time.Time
	bootTime func(context.Context) (time.Time, error)
	walk     func(context.Context, string, *discovery.Classifier) (*discovery.Result, error)

	runMu sync.Mutex // held by the running batch

	mu       sync.Mutex
	state    State
	reserved map[int64]bool
	cancel   context.CancelFunc
	added    chan library.Folder // folders to watch, nil unless watching
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithSink sets the event sink.
func WithSink(sink Sink) Option {
	return func(s *Scanner) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithAccess sets the folder access provider.
func WithAccess(p access.Provider) Option {
	return func(s *Scanner) {
		if p != nil {
			s.access = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Scanner over lib reading files with extractor.
func New(lib *library.Library, extractor reconcile.Extractor, cfg Config, opts ...Option) *Scanner {
	s := &Scanner{
		lib:      lib,
		cfg:      cfg.withDefaults(),
		access:   access.Noop{},
		sink:     nopSink{},
		logger:   zap.NewNop(),
		now:      time.Now,
		bootTime: hostBootTime,
		walk:     discovery.Walk,
		reserved: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.classifier = discovery.NewClassifier(s.cfg.Supported, s.cfg.Unsupported)
	s.reconciler = reconcile.New(lib, extractor,
		reconcile.WithWorkers(s.cfg.Workers),
		reconcile.WithArtwork(artwork.New(s.cfg.ArtworkMaxSize)),
		reconcile.WithLogger(s.logger.Named("reconcile")),
	)
	s.detector = duplicates.New(lib,
		duplicates.WithTolerance(s.cfg.DurationTolerance),
		duplicates.WithLogger(s.logger.Named("duplicates")),
	)
	return s
}

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel stops the running batch after its current chunk. Waiting batches
// are not affected.
func (s *Scanner) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// AddFolders registers folders and scans them. Paths that cannot be added
// are reported in the returned error; the others are still scanned.
func (s *Scanner) AddFolders(ctx context.Context, paths ...string) ([]library.Folder, error) {
	var added []library.Folder
	var errs []error
	for _, p := range paths {
		path, err := library.CleanFolderPath(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		bookmark, err := s.access.Bookmark(ctx, path)
		if err != nil {
			s.message(LevelError, errmsg.FormatWith(errmsg.OpFolderAccess, path, err))
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		f, err := s.lib.AddFolder(ctx, path, bookmark)
		if err != nil {
			s.message(LevelError, errmsg.FormatWith(errmsg.OpFolderAdd, path, err))
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		s.logger.Info("folder added", zap.String("path", f.Path), zap.Int64("id", f.ID))
		s.watchFolder(f)
		added = append(added, f)
	}

	if len(added) == 0 {
		return nil, errors.Join(errs...)
	}

	if _, err := s.scan(ctx, added, false); err != nil {
		errs = append(errs, err)
	}

	// Reload for the counts written by the scan
	for i, f := range added {
		if fresh, err := s.lib.FolderByID(context.WithoutCancel(ctx), f.ID); err == nil {
			added[i] = fresh
		}
	}
	return added, errors.Join(errs...)
}

// RemoveFolder deletes a folder with all its tracks, then recomputes
// duplicates and counts. A folder being scanned cannot be removed.
func (s *Scanner) RemoveFolder(ctx context.Context, id int64) error {
	f, err := s.lib.FolderByID(ctx, id)
	if err != nil {
		return err
	}

	kept, err := s.reserve([]library.Folder{f})
	if err != nil {
		return err
	}
	defer s.unreserve(kept)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	removed, err := s.lib.RemoveFolder(ctx, id)
	if err != nil {
		s.message(LevelError, errmsg.FormatWith(errmsg.OpFolderRemove, f.Path, err))
		return fmt.Errorf("remove folder: %w", err)
	}
	s.logger.Info("folder removed", zap.String("path", f.Path), zap.Int("tracks", removed))
	s.message(LevelInfo, fmt.Sprintf("Removed folder '%s' and %s", f.Name, errmsg.Count(removed, "track")))

	var errs []error
	if _, err := s.detector.Run(ctx); err != nil {
		s.message(LevelError, errmsg.Format(errmsg.OpDuplicates, err))
		errs = append(errs, err)
	}
	if err := s.lib.RefreshCounts(ctx); err != nil {
		s.message(LevelError, errmsg.Format(errmsg.OpCountRefresh, err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RefreshFolder scans one folder. Hard re-extracts every file.
func (s *Scanner) RefreshFolder(ctx context.Context, id int64, hard bool) (Summary, error) {
	f, err := s.lib.FolderByID(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return s.scan(ctx, []library.Folder{f}, hard)
}

// RefreshAll scans every registered folder not already being scanned.
func (s *Scanner) RefreshAll(ctx context.Context, hard bool) (Summary, error) {
	folders, err := s.lib.Folders(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load folders: %w", err)
	}
	if len(folders) == 0 {
		return Summary{}, nil
	}
	return s.scan(ctx, folders, hard)
}

// scan reserves folders and runs them as one batch once the previous
// batch is done.
func (s *Scanner) scan(ctx context.Context, folders []library.Folder, hard bool) (Summary, error) {
	kept, err := s.reserve(folders)
	if err != nil {
		return Summary{}, err
	}
	defer s.unreserve(kept)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	return s.runBatch(ctx, kept, hard)
}

func (s *Scanner) reserve(folders []library.Folder) ([]library.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []library.Folder
	for _, f := range folders {
		if s.reserved[f.ID] {
			continue
		}
		s.reserved[f.ID] = true
		kept = append(kept, f)
	}
	if len(kept) == 0 && len(folders) > 0 {
		return nil, ErrAlreadyScanning
	}
	return kept, nil
}

func (s *Scanner) unreserve(folders []library.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range folders {
		delete(s.reserved, f.ID)
	}
}

func (s *Scanner) setRunning(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateScanning
	s.cancel = cancel
}

func (s *Scanner) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state == StateIdle {
		s.cancel = nil
	}
}

func (s *Scanner) message(level Level, text string) {
	if text == "" {
		return
	}
	s.sink.Publish(Message{Level: level, Text: text})
}

// plan is a folder ready to be scanned.
type plan struct {
	folder  library.Folder
	walk    *discovery.Result
	release access.Release
	err     error
}

// runBatch scans folders in order, then finalizes. Every folder is walked
// before the first one is processed so the global total is known up front.
func (s *Scanner) runBatch(parent context.Context, folders []library.Folder, hard bool) (Summary, error) {
	start := s.now()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	s.setRunning(cancel)
	defer s.setState(StateIdle)

	count, err := s.lib.TrackCount(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("count tracks: %w", err)
	}
	initial := count == 0
	global := scanstate.NewGlobal(initial)
	throttle := scanstate.NewThrottle(s.cfg.ProgressInterval, func(snap scanstate.Snapshot) {
		s.sink.Publish(Progress{Snapshot: snap})
	})

	s.sink.Publish(Started{Initial: initial, Hard: hard, Folders: folders})
	s.logger.Info("scan started",
		zap.Int("folders", len(folders)),
		zap.Bool("hard", hard),
		zap.Bool("initial", initial))

	plans := s.prepare(ctx, folders, global)
	defer func() {
		for _, p := range plans {
			if p.release != nil {
				p.release()
			}
		}
	}()
	throttle.Notify(global.Snapshot())

	var summary Summary
	var halt error
	var done []folderResult
	for _, p := range plans {
		if ctx.Err() != nil {
			break
		}
		if p.err != nil {
			s.logger.Warn("folder skipped", zap.String("path", p.folder.Path), zap.Error(p.err))
			s.sink.Publish(FolderCompleted{Folder: p.folder, Err: p.err})
			s.message(LevelError, errmsg.FormatWith(errmsg.OpFolderAccess, p.folder.Path, p.err))
			continue
		}

		snap, err := s.scanFolder(ctx, p, hard, global, throttle)
		summary.add(snap)
		done = append(done, folderResult{folder: p.folder, snap: snap})
		s.sink.Publish(FolderCompleted{Folder: p.folder, Summary: snap, Err: err})

		switch {
		case err == nil, ctx.Err() != nil:
		case dbutil.IsSystemic(err):
			halt = err
		default:
			s.logger.Error("folder scan failed", zap.String("path", p.folder.Path), zap.Error(err))
			s.message(LevelError, errmsg.FormatWith(errmsg.OpFolderRefresh, p.folder.Path, err))
		}
		if halt != nil {
			break
		}
	}
	throttle.Flush()
	cancelled := halt == nil && ctx.Err() != nil

	s.setState(StateFinalizing)
	fctx := context.WithoutCancel(ctx)

	var dups duplicates.Result
	if !cancelled && halt == nil {
		dups, err = s.detector.Run(fctx)
		if err != nil {
			s.logger.Error("duplicate detection failed", zap.Error(err))
			s.message(LevelError, errmsg.Format(errmsg.OpDuplicates, err))
			if dbutil.IsSystemic(err) {
				halt = err
			}
		}
		summary.Duplicates = dups.Duplicates
	}
	if err := s.lib.RefreshCounts(fctx); err != nil {
		s.logger.Error("count refresh failed", zap.Error(err))
		s.message(LevelError, errmsg.Format(errmsg.OpCountRefresh, err))
	}

	summary.Elapsed = s.now().Sub(start)
	for _, m := range batchMessages(done, dups) {
		s.sink.Publish(m)
	}
	if halt != nil {
		s.message(LevelError, errmsg.Format(errmsg.OpScanWrite, halt))
	}
	if cancelled {
		s.message(LevelWarning, "Scan cancelled")
	}

	s.logger.Info("scan finished",
		zap.Int("processed", summary.Processed),
		zap.Int("inserted", summary.Inserted),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("removed", summary.Removed),
		zap.Int("failed", summary.Failed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Bool("cancelled", cancelled),
		zap.Duration("elapsed", summary.Elapsed))
	s.sink.Publish(Completed{Summary: summary, Cancelled: cancelled, Err: halt})

	switch {
	case halt != nil:
		return summary, fmt.Errorf("scan halted: %w", halt)
	case cancelled:
		return summary, ctx.Err()
	}
	return summary, nil
}

// prepare acquires access to each folder and walks it.
func (s *Scanner) prepare(ctx context.Context, folders []library.Folder, global *scanstate.Global) []*plan {
	plans := make([]*plan, 0, len(folders))
	for _, f := range folders {
		if ctx.Err() != nil {
			break
		}

		// Reload for the content hash of a scan that finished meanwhile
		fresh, err := s.lib.FolderByID(ctx, f.ID)
		if errors.Is(err, library.ErrNotFound) {
			continue
		}
		p := &plan{folder: f}
		plans = append(plans, p)
		if err != nil {
			p.err = err
			continue
		}
		p.folder = fresh

		release, err := s.access.Acquire(ctx, fresh.Path, fresh.Bookmark)
		if err != nil {
			p.err = err
			continue
		}
		p.release = release

		res, err := s.walk(ctx, fresh.Path, s.classifier)
		if err != nil {
			p.err = err
			continue
		}
		for _, werr := range res.Errors {
			s.logger.Warn("subtree skipped", zap.String("folder", fresh.Path), zap.Error(werr))
		}
		p.walk = res
		global.AddTotal(len(res.Files))
	}
	return plans
}

// scanFolder removes tracks of vanished files, then reconciles the folder's
// files chunk by chunk. Cancellation is honored between chunks.
func (s *Scanner) scanFolder(ctx context.Context, p *plan, hard bool, global *scanstate.Global, throttle *scanstate.Throttle) (scanstate.FolderSnapshot, error) {
	files := p.walk.Files
	id := p.folder.ID
	state := scanstate.NewFolderState(id, p.folder.Path, len(files))
	state.AddUnsupported(p.walk.Skipped)
	hash := p.walk.Hash()

	if !hard && p.folder.ContentHash != "" && hash == p.folder.ContentHash {
		s.logger.Debug("folder unchanged", zap.String("path", p.folder.Path))
		state.RecordSkip(len(files))
		global.AddProcessed(len(files))
		throttle.Notify(global.Snapshot())
		if err := s.lib.MarkFolderScanned(ctx, id, hash); err != nil {
			return state.Snapshot(), fmt.Errorf("mark folder scanned: %w", err)
		}
		return state.Snapshot(), nil
	}

	present := make([]string, len(files))
	for i, f := range files {
		present[i] = f.Path
	}
	removed, err := s.lib.Prune(ctx, id, present, p.walk.Unreadable)
	if err != nil {
		return state.Snapshot(), fmt.Errorf("prune: %w", err)
	}
	state.RecordRemoved(removed)

	existing, err := s.lib.ExistingTracks(ctx, id)
	if err != nil {
		return state.Snapshot(), fmt.Errorf("load tracks: %w", err)
	}

	for start := 0; start < len(files); start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return state.Snapshot(), err
		}
		end := min(start+s.cfg.BatchSize, len(files))
		_, err := s.reconciler.Process(ctx, reconcile.Chunk{
			FolderID: id,
			Files:    files[start:end],
			Existing: existing,
			Hard:     hard,
		}, state, global)
		throttle.Notify(global.Snapshot())
		if err != nil {
			if ctx.Err() != nil {
				return state.Snapshot(), ctx.Err()
			}
			s.logger.Error("chunk failed", zap.String("folder", p.folder.Path), zap.Int("offset", start), zap.Error(err))
			if dbutil.IsSystemic(err) {
				return state.Snapshot(), err
			}
		}
	}

	snap := state.Snapshot()
	if snap.Failed() > 0 || len(p.walk.Unreadable) > 0 {
		// Failed files and unreadable subtrees must be retried next time
		hash = ""
	}
	if err := s.lib.MarkFolderScanned(ctx, id, hash); err != nil {
		return snap, fmt.Errorf("mark folder scanned: %w", err)
	}
	return snap, nil
}
