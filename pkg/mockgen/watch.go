package mockgen

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchScript starts a goroutine that reloads the script file whenever it
// changes on disk. Editors often replace files instead of writing in place,
// so both Write and Create events trigger a reload.
func (s *Server) watchScript() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating script watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.config.ScriptPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching script dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-s.watchDone:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.config.ScriptPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.reloadScript()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("script watcher error", "error", err)
			}
		}
	}()

	return nil
}

// reloadScript re-parses the script file and swaps it in. A broken edit keeps
// the previous script so the server never serves a half-written file.
func (s *Server) reloadScript() {
	script, err := LoadScript(s.config.ScriptPath)
	if err != nil {
		s.logger.Warn("script reload failed, keeping previous script",
			"path", s.config.ScriptPath,
			"error", err,
		)
		return
	}
	if err := validateScript(script); err != nil {
		s.logger.Warn("script reload rejected, keeping previous script",
			"path", s.config.ScriptPath,
			"error", err,
		)
		return
	}

	s.setScript(script)
	s.logger.Info("script reloaded",
		"path", s.config.ScriptPath,
		"frame_count", len(script.Frames),
	)
}
