package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/scenario-runner/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses editor save bursts into one run.
const watchDebounce = 300 * time.Millisecond

// watchAndRun runs the selection, then once more after every settled
// change to a scenario file, until ctx is done. Run n writes to
// <output>/run-<n>.
func watchAndRun(ctx context.Context, cfg *RunConfig, con *console) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dirs, err := watchDirs(cfg.Paths)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	runs := 0
	runOnce := func() {
		runs++
		run := *cfg
		run.OutputDir = filepath.Join(cfg.OutputDir, fmt.Sprintf("run-%03d", runs))
		if _, err := executeTest(ctx, &run, con); err != nil {
			con.errorf("Error: %v", err)
		}
		con.printf("\n  %sWatching %d director%s for changes (Ctrl+C to stop)%s\n",
			con.color(colorCyan), len(dirs), plural(len(dirs), "y", "ies"), con.color(colorReset))
	}
	runOnce()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isWatchedEvent(event) {
				continue
			}
			// New directories join the watch, their files may be subflows
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			logger.Debug("watch: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			con.warnf("watcher error: %v", err)

		case <-fire:
			fire = nil
			con.printf("\n  %sChange detected, re-running%s\n", con.color(colorCyan), con.color(colorReset))
			runOnce()
		}
	}
}

// isWatchedEvent reports whether event touches a scenario file or a
// directory that may hold them.
func isWatchedEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	return ext == ".yaml" || ext == ".yml" || ext == ""
}

// watchDirs returns every directory under paths, each once. A file path
// contributes its parent directory.
func watchDirs(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", p, err)
		}
		root := p
		if !info.IsDir() {
			root = filepath.Dir(p)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, err := filepath.Abs(path); err == nil && !seen[abs] {
				seen[abs] = true
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", p, err)
		}
	}
	return dirs, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
