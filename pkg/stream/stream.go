// Package stream reconciles a conversation's historical snapshot with its
// live change feed into one ordered, duplicate-free view. The same
// reconciler drives group chats, channels and DM threads; a Descriptor
// supplies the per-kind addressing and filtering. Messages and game
// sessions interleave in a single timeline ordered by (timestamp, id).
package stream

import (
	"context"
	"errors"
	"sync"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
	"anonchat/pkg/notify"
)

// ErrNotFound is returned by Source lookups for absent records.
var ErrNotFound = errors.New("stream: not found")

// ErrClosed reports that the handle was closed before its snapshot loaded.
var ErrClosed = errors.New("stream: handle closed")

// Source is the historical side: one-shot snapshot fetches plus point
// lookups for reply resolution.
type Source interface {
	// Messages returns the stored messages of a conversation, oldest first.
	// Tombstoned messages may be included; the reconciler skips them.
	Messages(ctx context.Context, convID string) ([]models.Message, error)
	// GameSessions returns the game sessions attached to a conversation.
	GameSessions(ctx context.Context, contextType, contextID string) ([]models.GameSession, error)
	// MessageByID looks up a single message for reply resolution. Returns
	// ErrNotFound when the id does not exist.
	MessageByID(ctx context.Context, id string) (*models.Message, error)
	// Username resolves a user id to its display name.
	Username(ctx context.Context, userID string) (string, error)
}

// Feed is the live side. Subscribe returns a channel of change events for
// the descriptor's topic and a stop function releasing the subscription.
// Events may start flowing immediately; the reconciler buffers them until
// the historical snapshot is installed.
type Feed interface {
	Subscribe(ctx context.Context, d Descriptor) (<-chan models.Event, func(), error)
}

// Reconciler opens conversation views. It is cheap and safe to share; all
// per-conversation state lives on the Handle.
type Reconciler struct {
	src      Source
	feed     Feed
	notifier notify.Notifier
	// viewer is the local user id; inserts from other authors raise a
	// notification.
	viewer string
}

// New builds a reconciler. A nil notifier disables notifications.
func New(src Source, feed Feed, notifier notify.Notifier, viewerID string) *Reconciler {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Reconciler{src: src, feed: feed, notifier: notifier, viewer: viewerID}
}

// Handle is one open conversation view. View and Changes may be used from
// any goroutine; all mutation happens on the handle's own goroutine.
type Handle struct {
	desc Descriptor
	r    *Reconciler

	ctx    context.Context
	cancel context.CancelFunc
	stop   func()

	mu    sync.Mutex
	v     *view
	err   error
	names map[string]string

	ready   chan struct{}
	changes chan struct{}
	done    chan struct{}
}

type snapshot struct {
	messages []models.Message
	games    []models.GameSession
	err      error
}

// Open subscribes to the live feed, then starts the historical fetch in the
// background. Subscription happens first so no event published during the
// fetch is lost; events that arrive early are buffered and replayed through
// the same idempotent apply path once the snapshot is installed. Open
// returns immediately; Ready is closed when the view is usable and Err
// reports a fetch failure. Closing the handle before the fetch resolves
// discards the late response.
func (r *Reconciler) Open(ctx context.Context, d Descriptor) (*Handle, error) {
	hctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		desc:    d,
		r:       r,
		ctx:     hctx,
		cancel:  cancel,
		v:       newView(),
		names:   make(map[string]string),
		ready:   make(chan struct{}),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	events, stop, err := r.feed.Subscribe(hctx, d)
	if err != nil {
		cancel()
		return nil, err
	}
	h.stop = stop
	go h.run(events)
	return h, nil
}

// OpenWait is Open followed by a wait for the snapshot. Convenience for
// callers without their own readiness handling.
func (r *Reconciler) OpenWait(ctx context.Context, d Descriptor) (*Handle, error) {
	h, err := r.Open(ctx, d)
	if err != nil {
		return nil, err
	}
	select {
	case <-h.Ready():
	case <-ctx.Done():
		h.Close()
		return nil, ctx.Err()
	}
	if err := h.Err(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// View returns an ordered snapshot of the current items. Empty until the
// historical snapshot is installed; never a partially installed batch.
func (h *Handle) View() []Item {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.v.snapshot()
}

// Changes signals, coalesced, whenever the view content changed. Drain and
// re-read View.
func (h *Handle) Changes() <-chan struct{} { return h.changes }

// Ready is closed once the historical snapshot is installed and buffered
// events replayed, or once the handle failed or was closed early.
func (h *Handle) Ready() <-chan struct{} { return h.ready }

// Err returns the terminal open error, if any. Valid after Ready.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the handle's goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Close releases the feed subscription and stops the handle. Safe to call
// at any point, including while the historical fetch is still in flight;
// the late response is then discarded. Idempotent.
func (h *Handle) Close() {
	h.cancel()
	h.stop()
}

func (h *Handle) run(events <-chan models.Event) {
	defer close(h.done)

	snapCh := make(chan snapshot, 1)
	go func() {
		var s snapshot
		s.messages, s.err = h.r.src.Messages(h.ctx, h.desc.ConversationID)
		if s.err == nil {
			s.games, s.err = h.r.src.GameSessions(h.ctx, h.desc.GameContextType, h.desc.GameContextID)
		}
		snapCh <- s
	}()

	var buffer []models.Event
	for installed := false; !installed; {
		select {
		case <-h.ctx.Done():
			h.fail(ErrClosed)
			return
		case ev, ok := <-events:
			if !ok {
				h.fail(ErrClosed)
				return
			}
			buffer = append(buffer, ev)
		case snap := <-snapCh:
			if snap.err != nil {
				h.fail(snap.err)
				return
			}
			h.install(snap)
			for _, ev := range buffer {
				h.apply(ev, false)
			}
			buffer = nil
			installed = true
		}
	}
	close(h.ready)
	h.signal()

	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.apply(ev, true)
		}
	}
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.ready)
}

// install converts the fetched batch into view items. Tombstoned messages
// are skipped and reply references resolved against the batch first, so the
// initial view needs at most one pass plus point lookups for references
// that leave the batch. Item building, including those lookups, happens
// before h.mu is taken; the lock only covers the final batch upsert so the
// view goes from empty to fully installed in one step.
func (h *Handle) install(snap snapshot) {
	batch := make(map[string]*models.Message, len(snap.messages))
	for i := range snap.messages {
		m := &snap.messages[i]
		batch[m.ID] = m
	}

	items := make([]Item, 0, len(snap.messages)+len(snap.games))
	for i := range snap.messages {
		m := snap.messages[i]
		if m.Deleted {
			continue
		}
		if h.desc.Kind == models.KindDM && !h.dmMatch(&m) {
			continue
		}
		it := Item{Kind: ItemMessage, ID: m.ID, Time: m.TS, Message: &m}
		if m.ReplyTo != "" {
			it.Reply = h.resolveReply(m.ReplyTo, batch)
		}
		items = append(items, it)
	}
	for i := range snap.games {
		g := snap.games[i]
		items = append(items, Item{Kind: ItemGame, ID: g.ID, Time: g.TS, Game: &g})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, it := range items {
		h.v.upsert(it)
	}
}

// apply routes one feed event through the view. The same path serves both
// buffered replay and live delivery; every operation is idempotent, so an
// event present in the snapshot and again in the buffer converges to one
// row. live marks post-snapshot delivery, which is the only phase that
// raises notifications.
func (h *Handle) apply(ev models.Event, live bool) {
	if !h.desc.matches(ev) {
		return
	}
	changed := false
	switch ev.Entity {
	case models.EntityMessage:
		changed = h.applyMessage(ev, live)
	case models.EntityGame:
		changed = h.applyGame(ev)
	default:
		logger.Debug("stream_unknown_entity", "entity", ev.Entity)
	}
	if changed {
		h.signal()
	}
}

func (h *Handle) applyMessage(ev models.Event, live bool) bool {
	if ev.Type == models.EventDelete {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.v.remove(ev.ID)
	}
	m, err := ev.MessagePayload()
	if err != nil {
		logger.Warn("stream_bad_payload", "id", ev.ID, "error", err)
		return false
	}
	if m.Deleted {
		// tombstone updates arrive as deletes in all but name
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.v.remove(m.ID)
	}
	it := Item{Kind: ItemMessage, ID: m.ID, Time: m.TS, Message: &m}
	if ev.Type == models.EventUpdate {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.v.update(it)
	}
	if m.ReplyTo != "" {
		// may hit the source; runs unlocked so View stays responsive
		it.Reply = h.resolveReply(m.ReplyTo, nil)
	}
	h.mu.Lock()
	inserted := h.v.upsert(it)
	h.mu.Unlock()
	if inserted && live && m.Author != h.r.viewer {
		h.notifyInsert(&m)
	}
	return true
}

func (h *Handle) applyGame(ev models.Event) bool {
	if ev.Type == models.EventDelete {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.v.remove(ev.ID)
	}
	g, err := ev.GamePayload()
	if err != nil {
		logger.Warn("stream_bad_payload", "id", ev.ID, "error", err)
		return false
	}
	it := Item{Kind: ItemGame, ID: g.ID, Time: g.TS, Game: &g}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev.Type == models.EventUpdate {
		return h.v.update(it)
	}
	h.v.upsert(it)
	return true
}

func (h *Handle) dmMatch(m *models.Message) bool {
	pair := [2]string{m.Author, m.Recipient}
	if pair[0] > pair[1] {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return pair == h.desc.Participants
}

func (h *Handle) signal() {
	select {
	case h.changes <- struct{}{}:
	default:
	}
}

func (h *Handle) notifyInsert(m *models.Message) {
	name := h.username(m.Author)
	h.r.notifier.Notify(name, m.Content)
}
