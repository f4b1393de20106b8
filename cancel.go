package depspider

import "sync"

// CancelFlag is the shared cooperative cancellation token between a Spider
// and any isolated execution context working on its behalf. Once set it
// stays set until an explicit Reset preceding a new run.
type CancelFlag struct {
	mu        sync.Mutex
	ch        chan struct{}
	cancelled bool
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{ch: make(chan struct{})}
}

// Cancel sets the flag. Safe to call repeatedly.
func (f *CancelFlag) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cancelled {
		f.cancelled = true
		close(f.ch)
	}
}

// Cancelled reports whether the flag is set.
func (f *CancelFlag) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Done returns a channel closed when the flag is set. The channel is
// replaced on Reset; callers should re-fetch it per run.
func (f *CancelFlag) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ch
}

// Reset clears the flag for a new run.
func (f *CancelFlag) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		f.cancelled = false
		f.ch = make(chan struct{})
	}
}
