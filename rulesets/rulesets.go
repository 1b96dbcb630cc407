// rulesets/rulesets.go
package rulesets

import (
	"sort"
	"sync"

	"github.com/wfunc/turnserver/game"
)

var (
	mu       sync.RWMutex
	registry = make(map[string]func() game.Hooks)
)

// Register makes a rule set available under a name; concrete games call
// this from init.
func Register(name string, factory func() game.Hooks) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// Lookup builds a fresh hook set for one game attempt.
func Lookup(name string) (game.Hooks, bool) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return game.Hooks{}, false
	}
	return factory(), true
}

// Names lists the registered rule sets, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
