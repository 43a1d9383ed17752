package build

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses editor save bursts into one rebuild.
const DefaultDebounce = 300 * time.Millisecond

// WatchConfig selects what Watch observes.
type WatchConfig struct {
	Root       string
	Extensions []string
	// Ignore holds directories whose events never trigger a rebuild, such as
	// an output directory under Root.
	Ignore   []string
	Debounce time.Duration
	Logger   *slog.Logger
	// Ready is called once all directories are watched.
	Ready func()
}

// Watch calls rebuild after matching files under cfg.Root change, once per
// quiet period. It blocks until ctx is done and returns nil then. Rebuild
// errors are logged and do not stop the watch.
func Watch(ctx context.Context, cfg WatchConfig, rebuild func(context.Context) error) error {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	ignore := make([]string, 0, len(cfg.Ignore))
	for _, p := range cfg.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			ignore = append(ignore, abs)
		}
	}
	// A single file is watched through its directory.
	var only string
	fi, err := os.Stat(cfg.Root)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		err = addWatchRecursive(watcher, cfg.Root, ignore)
	} else {
		only, _ = filepath.Abs(cfg.Root)
		err = watcher.Add(filepath.Dir(cfg.Root))
	}
	if err != nil {
		return err
	}
	log.Info("watching", slog.String("dir", cfg.Root), slog.Duration("debounce", debounce))
	if cfg.Ready != nil {
		cfg.Ready()
	}

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
		timerC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case <-timerC:
			timerC = nil
			if err := rebuild(ctx); err != nil {
				log.Error("rebuild failed", slog.Any("err", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", slog.Any("err", err))
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignored(evt.Name, ignore) {
				continue
			}
			if only != "" {
				if abs, _ := filepath.Abs(evt.Name); abs == only && shouldRebuild(evt, cfg.Extensions) {
					resetTimer()
				}
				continue
			}
			if evt.Op&fsnotify.Create != 0 {
				if fi, statErr := os.Stat(evt.Name); statErr == nil && fi.IsDir() {
					if addErr := addWatchRecursive(watcher, evt.Name, ignore); addErr != nil {
						log.Warn("add watch failed", slog.String("dir", evt.Name), slog.Any("err", addErr))
					}
					resetTimer()
					continue
				}
			}
			if shouldRebuild(evt, cfg.Extensions) {
				log.Debug("change", slog.String("file", evt.Name), slog.String("op", evt.Op.String()))
				resetTimer()
			}
		}
	}
}

func shouldRebuild(evt fsnotify.Event, exts []string) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return hasExtension(base, exts)
}

func ignored(path string, ignore []string) bool {
	if len(ignore) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range ignore {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || ignored(path, ignore)) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
