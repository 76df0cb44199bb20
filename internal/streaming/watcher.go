package streaming

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/logger"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultDebounceWindow = 500 * time.Millisecond
)

// WatcherOptions tunes the schedule watcher
type WatcherOptions struct {
	// Debounce is how long a file must stay quiet before its channels are notified
	Debounce time.Duration
	// PollInterval is the stat interval used when fsnotify is unavailable
	PollInterval time.Duration
	// PollOnly skips fsnotify entirely
	PollOnly bool
}

// ScheduleWatcher notifies when any schedule file a channel was built from
// changes. Parent directories are watched so editors that replace files by
// rename are still seen.
type ScheduleWatcher struct {
	onChange     func(channelID uuid.UUID)
	debounce     time.Duration
	pollInterval time.Duration
	pollOnly     bool

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu       sync.Mutex
	files    map[string]map[uuid.UUID]struct{} // file -> channels built from it
	channels map[uuid.UUID][]string            // channel -> files
	dirs     map[string]int                    // watched dir -> watched files inside
	modTimes map[string]time.Time              // polling state
	pending  map[uuid.UUID]time.Time           // channel -> last change seen
	started  bool
	stopped  bool
}

// NewScheduleWatcher creates a watcher calling onChange once per debounced change
func NewScheduleWatcher(onChange func(channelID uuid.UUID), opts WatcherOptions) (*ScheduleWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("change callback cannot be nil")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounceWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	return &ScheduleWatcher{
		onChange:     onChange,
		debounce:     opts.Debounce,
		pollInterval: opts.PollInterval,
		pollOnly:     opts.PollOnly,
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
		files:        make(map[string]map[uuid.UUID]struct{}),
		channels:     make(map[uuid.UUID][]string),
		dirs:         make(map[string]int),
		modTimes:     make(map[string]time.Time),
		pending:      make(map[uuid.UUID]time.Time),
	}, nil
}

// Start begins watching
func (sw *ScheduleWatcher) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.stopped {
		return fmt.Errorf("watcher has been stopped")
	}
	if sw.started {
		return nil
	}
	sw.started = true

	if !sw.pollOnly {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Failed to create fsnotify watcher, falling back to polling")
		} else {
			sw.fsnotifyWatcher = watcher
			for dir := range sw.dirs {
				if err := watcher.Add(dir); err != nil {
					logger.Log.Warn().
						Err(err).
						Str("dir", dir).
						Msg("Failed to watch schedule directory, falling back to polling")
					_ = watcher.Close()
					sw.fsnotifyWatcher = nil
					break
				}
			}
		}
	}

	go sw.run(sw.fsnotifyWatcher)

	logger.Log.Info().
		Bool("using_fsnotify", sw.fsnotifyWatcher != nil).
		Int("files", len(sw.files)).
		Dur("debounce", sw.debounce).
		Msg("Schedule watcher started")

	return nil
}

// Stop gracefully stops the watcher
func (sw *ScheduleWatcher) Stop() error {
	sw.mu.Lock()
	if sw.stopped {
		sw.mu.Unlock()
		return nil
	}
	sw.stopped = true
	started := sw.started
	sw.mu.Unlock()

	if !started {
		return nil
	}

	close(sw.stopChan)
	if sw.fsnotifyWatcher != nil {
		if err := sw.fsnotifyWatcher.Close(); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Error closing fsnotify watcher")
		}
	}
	<-sw.watchDone

	logger.Log.Debug().Msg("Schedule watcher stopped")
	return nil
}

// Watch replaces the set of files watched for a channel
func (sw *ScheduleWatcher) Watch(channelID uuid.UUID, files []string) error {
	clean := make([]string, 0, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		clean = append(clean, abs)
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.stopped {
		return fmt.Errorf("watcher has been stopped")
	}

	sw.unwatchLocked(channelID)

	var firstErr error
	for _, file := range clean {
		channels, ok := sw.files[file]
		if !ok {
			channels = make(map[uuid.UUID]struct{})
			sw.files[file] = channels
			sw.modTimes[file] = modTimeOf(file)
			if err := sw.addDirLocked(filepath.Dir(file)); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		channels[channelID] = struct{}{}
	}
	sw.channels[channelID] = clean

	return firstErr
}

// Unwatch stops watching files for a channel
func (sw *ScheduleWatcher) Unwatch(channelID uuid.UUID) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.unwatchLocked(channelID)
}

// Watching returns the files watched for a channel, sorted
func (sw *ScheduleWatcher) Watching(channelID uuid.UUID) []string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	files := append([]string(nil), sw.channels[channelID]...)
	sort.Strings(files)
	return files
}

func (sw *ScheduleWatcher) unwatchLocked(channelID uuid.UUID) {
	for _, file := range sw.channels[channelID] {
		channels := sw.files[file]
		delete(channels, channelID)
		if len(channels) > 0 {
			continue
		}
		delete(sw.files, file)
		delete(sw.modTimes, file)
		sw.removeDirLocked(filepath.Dir(file))
	}
	delete(sw.channels, channelID)
	delete(sw.pending, channelID)
}

func (sw *ScheduleWatcher) addDirLocked(dir string) error {
	sw.dirs[dir]++
	if sw.dirs[dir] > 1 || sw.fsnotifyWatcher == nil {
		return nil
	}
	if err := sw.fsnotifyWatcher.Add(dir); err != nil {
		return NewSessionError(ErrorTypeWatch, uuid.Nil, "failed to watch "+dir, err)
	}
	return nil
}

func (sw *ScheduleWatcher) removeDirLocked(dir string) {
	sw.dirs[dir]--
	if sw.dirs[dir] > 0 {
		return
	}
	delete(sw.dirs, dir)
	if sw.fsnotifyWatcher != nil {
		_ = sw.fsnotifyWatcher.Remove(dir)
	}
}

// run is the watching loop (fsnotify or polling)
func (sw *ScheduleWatcher) run(watcher *fsnotify.Watcher) {
	defer close(sw.watchDone)

	ticker := time.NewTicker(sw.debounce)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	var poll <-chan time.Time
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	} else {
		pollTicker := time.NewTicker(sw.pollInterval)
		defer pollTicker.Stop()
		poll = pollTicker.C
	}

	for {
		select {
		case <-sw.stopChan:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				sw.handleFileEvent(event.Name)
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-poll:
			sw.pollFiles()
		case <-ticker.C:
			sw.processPendingNotifications()
		}
	}
}

// handleFileEvent marks every channel built from path as changed
func (sw *ScheduleWatcher) handleFileEvent(path string) {
	path = filepath.Clean(path)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	for channelID := range sw.files[path] {
		sw.pending[channelID] = now
	}
}

// pollFiles compares modification times against the last poll
func (sw *ScheduleWatcher) pollFiles() {
	sw.mu.Lock()
	files := make([]string, 0, len(sw.files))
	for f := range sw.files {
		files = append(files, f)
	}
	sw.mu.Unlock()

	for _, file := range files {
		modTime := modTimeOf(file)

		sw.mu.Lock()
		prev, seen := sw.modTimes[file]
		if seen && !prev.Equal(modTime) {
			sw.modTimes[file] = modTime
			now := time.Now()
			for channelID := range sw.files[file] {
				sw.pending[channelID] = now
			}
		}
		sw.mu.Unlock()
	}
}

// modTimeOf returns the file's modification time, zero when it is missing
func modTimeOf(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// processPendingNotifications fires onChange for channels whose files have
// been quiet for the debounce window
func (sw *ScheduleWatcher) processPendingNotifications() {
	now := time.Now()

	sw.mu.Lock()
	var ready []uuid.UUID
	for channelID, last := range sw.pending {
		if now.Sub(last) >= sw.debounce {
			ready = append(ready, channelID)
			delete(sw.pending, channelID)
		}
	}
	sw.mu.Unlock()

	for _, channelID := range ready {
		logger.Log.Info().
			Str("channel_id", channelID.String()).
			Msg("Schedule change detected")
		sw.onChange(channelID)
	}
}
