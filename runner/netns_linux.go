//go:build linux
// +build linux

package runner

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/inovex/illuminatio-go/netns"
)

// ErrNestedScope is returned when a second network-namespace scope is
// requested while one is already open (spec §5: "nesting scopes is
// prohibited").
var ErrNestedScope = errors.New("illuminatio: nested network-namespace entry is prohibited")

var scopeMu sync.Mutex
var scopeOpen bool

// enterNamespace opens a scoped network-namespace entry at path,
// locking the calling goroutine to its OS thread for the duration
// (setns is thread-scoped) and returning a release func that must run
// before the scope's caller returns on every exit path.
func enterNamespace(path string) (func() error, error) {
	scopeMu.Lock()
	if scopeOpen {
		scopeMu.Unlock()
		return nil, ErrNestedScope
	}
	scopeOpen = true
	scopeMu.Unlock()

	runtime.LockOSThread()

	restore, err := netns.New().Enter(path)
	if err != nil {
		runtime.UnlockOSThread()
		scopeMu.Lock()
		scopeOpen = false
		scopeMu.Unlock()
		return nil, err
	}

	return func() error {
		defer runtime.UnlockOSThread()
		defer func() {
			scopeMu.Lock()
			scopeOpen = false
			scopeMu.Unlock()
		}()
		return restore()
	}, nil
}
