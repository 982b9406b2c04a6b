package os

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
)

type logger interface {
	Info(msg string, keyvals ...interface{})
}

// NotifyInterrupt relays SIGINT and SIGTERM on the returned channel until
// stop is called.
func NotifyInterrupt() (sigs <-chan os.Signal, stop func()) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	return c, func() { signal.Stop(c) }
}

// TrapSignal runs cb on the first SIGINT or SIGTERM and exits with code 0.
// A second signal while cb is still running exits at once with code 1.
func TrapSignal(logger logger, cb func()) {
	c, _ := NotifyInterrupt()

	go func() {
		sig := <-c
		logger.Info("captured signal, shutting down", "signal", sig)

		go func() {
			sig := <-c
			logger.Info("captured second signal, exiting now", "signal", sig)
			os.Exit(1)
		}()

		if cb != nil {
			cb()
		}
		os.Exit(0)
	}()
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return fmt.Errorf("could not create directory %v: %w", dir, err)
	}
	return nil
}

// FileExists reports whether anything exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
