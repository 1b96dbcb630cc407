// playlist/playlist.go
package playlist

import (
	"sync"

	"github.com/wfunc/turnserver/game"
)

// Entry is one queued game: a rule-set name for clients plus the hooks
// the controller will drive.
type Entry struct {
	Name  string
	Hooks game.Hooks
}

// Playlist is the ordered set of games a room will run. The room takes
// the next entry when the previous game's results display interval
// elapses.
type Playlist struct {
	mu      sync.Mutex
	entries []Entry
	cursor  int
}

func New(entries ...Entry) *Playlist {
	return &Playlist{entries: entries}
}

// Append queues another game at the end.
func (p *Playlist) Append(entry Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

// Next returns the next entry and advances the cursor; false when the
// playlist is exhausted.
func (p *Playlist) Next() (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor >= len(p.entries) {
		return Entry{}, false
	}
	entry := p.entries[p.cursor]
	p.cursor++
	return entry, true
}

// Remaining reports how many entries have not been started yet.
func (p *Playlist) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) - p.cursor
}

// Names lists every queued rule-set name in order.
func (p *Playlist) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.Name
	}
	return names
}
