package watch

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ConfigFile watches the loaded configuration file and logs a warning when
// it is modified on disk. Changes are not hot-applied; the warning reminds
// the operator that a restart is needed. Returns a close function.
func ConfigFile(path string) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file: editors that write via
	// rename would otherwise detach the watch after the first save.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				changed, _ := filepath.Abs(event.Name)
				if changed != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					logrus.WithFields(logrus.Fields{
						"config": path,
						"op":     event.Op.String(),
					}).Warn("config file changed on disk, restart to apply")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Debug("config watcher error")
			}
		}
	}()

	return func() { watcher.Close() }, nil
}
