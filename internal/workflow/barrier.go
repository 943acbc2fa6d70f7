package workflow

import (
	"context"
	"sync"

	"engram/internal/subtitles"
)

// SubtitleBarrier synchronizes the background subtitle-fetch task with the
// per-title matching tasks of one job. The fetch side signals exactly once,
// on success, partial success, or terminal failure; every matcher blocks
// until that signal regardless of outcome. Repeated signals are ignored.
type SubtitleBarrier struct {
	once  sync.Once
	done  chan struct{}
	index *subtitles.ReferenceIndex
	err   error
}

// NewSubtitleBarrier creates an unsignalled barrier.
func NewSubtitleBarrier() *SubtitleBarrier {
	return &SubtitleBarrier{done: make(chan struct{})}
}

// Signal publishes the fetch outcome and releases all waiters. Only the
// first call takes effect.
func (b *SubtitleBarrier) Signal(index *subtitles.ReferenceIndex, err error) {
	b.once.Do(func() {
		b.index = index
		b.err = err
		close(b.done)
	})
}

// Wait blocks until the barrier is signalled or the context is cancelled.
// The returned index may be nil when the fetch failed.
func (b *SubtitleBarrier) Wait(ctx context.Context) (*subtitles.ReferenceIndex, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return b.index, b.err
	}
}

// Signalled reports whether the fetch outcome has been published.
func (b *SubtitleBarrier) Signalled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
