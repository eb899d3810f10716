package extraction

import (
	"sync"

	"github.com/hazyhaar/promptcap/prompt"
)

// Latest holds the most recent extraction result for late-joining readers.
// It is cleared when a new extraction starts. Subscribers get every Set
// through a one-slot channel; a slow reader sees only the newest value.
type Latest struct {
	mu    sync.RWMutex
	value *prompt.ExtractionResult
	subs  map[chan *prompt.ExtractionResult]struct{}
}

// NewLatest returns an empty cell.
func NewLatest() *Latest {
	return &Latest{subs: make(map[chan *prompt.ExtractionResult]struct{})}
}

// Get returns the current value, or nil.
func (l *Latest) Get() *prompt.ExtractionResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value
}

// Set replaces the value and notifies subscribers.
func (l *Latest) Set(v *prompt.ExtractionResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	for ch := range l.subs {
		select {
		case ch <- v:
		default:
			// Drop the stale value the reader has not taken yet.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Clear empties the cell. Subscribers are not notified.
func (l *Latest) Clear() {
	l.mu.Lock()
	l.value = nil
	l.mu.Unlock()
}

// Subscribe returns a channel receiving each new value and a cancel
// function that closes it.
func (l *Latest) Subscribe() (<-chan *prompt.ExtractionResult, func()) {
	ch := make(chan *prompt.ExtractionResult, 1)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}
