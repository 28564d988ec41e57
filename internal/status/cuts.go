package status

import "sync"

// CutToken correlates an initial cut with its deferred resolution.
// The zero value is never issued.
type CutToken uint64

// PendingCuts tracks notes whose post-cut swing is still being scored.
type PendingCuts struct {
	mu    sync.Mutex
	next  CutToken
	notes map[CutToken]Note
}

func NewPendingCuts() *PendingCuts {
	return &PendingCuts{notes: make(map[CutToken]Note)}
}

// Track records note and returns the token to present on resolution.
func (p *PendingCuts) Track(note Note) CutToken {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next++
	p.notes[p.next] = note
	return p.next
}

// Resolve returns the note tracked under t and forgets it. ok is false
// for unknown tokens, including ones dropped by Clear.
func (p *PendingCuts) Resolve(t CutToken) (Note, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	note, ok := p.notes[t]
	if ok {
		delete(p.notes, t)
	}
	return note, ok
}

// Clear drops every pending cut, e.g. when a song is abandoned.
func (p *PendingCuts) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.notes)
}

func (p *PendingCuts) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.notes)
}
