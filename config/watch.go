package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/opd-ai/cow/logging"
	"github.com/sirupsen/logrus"
)

// Watch reloads path whenever it is written or re-created and passes every
// valid result to onChange. Invalid reloads are logged and skipped. The
// parent directory is watched so editors that replace the file are seen.
// Watch blocks until ctx ends.
func Watch(ctx context.Context, path string, log *logrus.Entry, onChange func(*Config)) error {
	log = logging.OrDiscard(log).WithField("path", path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	log.WithField("function", "Watch").Debug("Watching config file")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(log, path)
			if err != nil {
				log.WithFields(logrus.Fields{
					"function": "Watch",
					"op":       ev.Op.String(),
					"error":    err.Error(),
				}).Warn("Config reload rejected")
				continue
			}
			log.WithFields(logrus.Fields{
				"function": "Watch",
				"op":       ev.Op.String(),
			}).Info("Config reloaded")
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithFields(logrus.Fields{
				"function": "Watch",
				"error":    err.Error(),
			}).Warn("Config watcher error")
		}
	}
}
