// Package dashboard keeps a live copy of the status board on the client side.
//
// A View fetches the whole table, subscribes to change notifications and
// re-reads the whole table on each one. It never applies event payloads.
package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
)

const (
	minResubscribeDelay = 250 * time.Millisecond
	maxResubscribeDelay = 30 * time.Second
)

// Reader loads the full board
type Reader interface {
	List(ctx context.Context) ([]*domain.StatusRecord, error)
}

// ReaderFunc adapts a plain function, e.g. StatusService.Board, to Reader
type ReaderFunc func(ctx context.Context) ([]*domain.StatusRecord, error)

func (f ReaderFunc) List(ctx context.Context) ([]*domain.StatusRecord, error) {
	return f(ctx)
}

// ChangeSource delivers change notifications for a table until unsubscribed.
// A source that loses its connection calls onDrop once and delivers nothing
// more; the caller is expected to subscribe again.
type ChangeSource interface {
	Subscribe(ctx context.Context, table string, handler feed.Handler, onDrop func(error)) (unsubscribe func(), err error)
}

// FeedSource exposes an in-process feed as a ChangeSource
type FeedSource struct {
	Feed feed.Subscriber
}

// Subscribe registers handler on the feed. An in-process feed never drops.
func (s FeedSource) Subscribe(_ context.Context, table string, handler feed.Handler, _ func(error)) (func(), error) {
	return s.Feed.Subscribe(table, handler), nil
}

// Snapshot is the view state handed to renderers
type Snapshot struct {
	People    []*domain.StatusRecord
	Me        string
	MyStatus  domain.Status
	Err       error
	FetchedAt time.Time
}

// MyStatus returns name's status on the board, or "" when the name is absent
// or has not picked a status yet.
func MyStatus(people []*domain.StatusRecord, name string) domain.Status {
	for _, p := range people {
		if p.Name != name {
			continue
		}
		if p.Status == domain.StatusUnknown {
			return ""
		}
		return p.Status
	}
	return ""
}

type View struct {
	session  domain.Session
	reader   Reader
	changes  ChangeSource
	onChange func(Snapshot)

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewView creates a view for session. onChange runs on the Run goroutine after
// every fetch, including failed ones, and may be nil.
func NewView(session domain.Session, reader Reader, changes ChangeSource, onChange func(Snapshot)) *View {
	return &View{
		session:  session,
		reader:   reader,
		changes:  changes,
		onChange: onChange,
		snapshot: Snapshot{Me: session.Name},
	}
}

// Run keeps the view current until ctx is cancelled. It returns
// domain.ErrNoSession without touching the network when there is no session.
//
// When the change source drops, the snapshot carries the error until Run has
// subscribed again and refetched the table.
func (v *View) Run(ctx context.Context) error {
	if !v.session.Valid() {
		return domain.ErrNoSession
	}

	// one slot: a notification arriving while a refetch is queued is merged into it
	pending := make(chan struct{}, 1)
	notify := func(feed.Event) {
		select {
		case pending <- struct{}{}:
		default:
		}
	}
	dropped := make(chan error, 1)
	onDrop := func(err error) {
		select {
		case dropped <- err:
		default:
		}
	}

	unsubscribe, err := v.changes.Subscribe(ctx, domain.StatusTable, notify, onDrop)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}
	defer func() { unsubscribe() }()

	v.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pending:
			v.refresh(ctx)
		case err := <-dropped:
			unsubscribe()
			unsubscribe = func() {}
			v.fail(err)

			next, ok := v.resubscribe(ctx, notify, onDrop)
			if !ok {
				return nil
			}
			unsubscribe = next
			v.refresh(ctx)
		}
	}
}

// resubscribe retries with exponential backoff until it succeeds or ctx ends
func (v *View) resubscribe(ctx context.Context, notify feed.Handler, onDrop func(error)) (func(), bool) {
	delay := minResubscribeDelay
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}

		unsubscribe, err := v.changes.Subscribe(ctx, domain.StatusTable, notify, onDrop)
		if err == nil {
			return unsubscribe, true
		}
		v.fail(err)

		delay *= 2
		if delay > maxResubscribeDelay {
			delay = maxResubscribeDelay
		}
	}
}

// Snapshot returns the latest state
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshot
}

// fail records err on the current snapshot, keeping the last good table
func (v *View) fail(err error) {
	v.mu.Lock()
	v.snapshot.Err = err
	snap := v.snapshot
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(snap)
	}
}

func (v *View) refresh(ctx context.Context) {
	people, err := v.reader.List(ctx)
	if ctx.Err() != nil {
		return
	}

	v.mu.Lock()
	if err != nil {
		// keep the last good table on screen
		v.snapshot.Err = err
	} else {
		v.snapshot = Snapshot{
			People:    people,
			Me:        v.session.Name,
			MyStatus:  MyStatus(people, v.session.Name),
			FetchedAt: time.Now(),
		}
	}
	snap := v.snapshot
	v.mu.Unlock()

	if v.onChange != nil {
		v.onChange(snap)
	}
}
