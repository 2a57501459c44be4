// Package logger hands out named logr loggers backed by stdr.
package logger

import (
	"log"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var (
	mu   sync.RWMutex
	root = stdr.New(log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds))
)

// GetLogger returns the root logger with the given name appended.
func GetLogger(name string) logr.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if name == "" {
		return root
	}
	return root.WithName(name)
}

// SetLogger replaces the root logger. Loggers already handed out keep their sink.
func SetLogger(l logr.Logger) {
	mu.Lock()
	defer mu.Unlock()

	root = l
}

// SetVerbosity sets the global stdr verbosity and returns the previous value.
func SetVerbosity(v int) int {
	return stdr.SetVerbosity(v)
}
