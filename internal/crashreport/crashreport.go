// Package crashreport routes otherwise-unreported panics to the logging sink.
package crashreport

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/samvad-hq/wcag-scrapper/internal/logger"
)

var (
	once sync.Once
	mu   sync.RWMutex
	sink logger.Logger
)

// Install sets the process-wide crash sink. Only the first call has an effect;
// it reports whether this call installed the hook.
func Install(log logger.Logger) bool {
	installed := false
	once.Do(func() {
		mu.Lock()
		sink = logger.Ensure(log)
		mu.Unlock()
		debug.SetTraceback("all")
		installed = true
	})
	return installed
}

// Installed reports whether Install has been called.
func Installed() bool {
	mu.RLock()
	defer mu.RUnlock()
	return sink != nil
}

// Capture reports an in-flight panic to the installed sink and then re-panics so
// the failure is not swallowed. It must be deferred directly, e.g.
//
//	defer crashreport.Capture()
func Capture() {
	r := recover()
	if r == nil {
		return
	}
	Report(r, debug.Stack())
	panic(r)
}

// Report writes a single crash record. It is a no-op before Install.
func Report(v any, stack []byte) {
	mu.RLock()
	s := sink
	mu.RUnlock()
	if s == nil {
		return
	}
	s.ErrorObj("unexpected panic", "crash", map[string]any{
		"panic": fmt.Sprint(v),
		"stack": string(stack),
	})
}
