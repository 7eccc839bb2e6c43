package stream

import (
	"sort"

	"anonchat/pkg/models"
)

// ItemKind discriminates the two entity kinds a view can interleave.
type ItemKind string

const (
	ItemMessage ItemKind = "message"
	ItemGame    ItemKind = "game"
)

// Item is one row of the merged view. Exactly one of Message/Game is set,
// per Kind. Time is the ordering timestamp (creation time, not edit time)
// and together with ID forms the total order of the view.
type Item struct {
	Kind ItemKind
	ID   string
	Time int64

	Message *models.Message
	Game    *models.GameSession

	// Reply is the resolved preview of the referenced message, set only on
	// message items that carry a reply reference. It is a snapshot taken at
	// resolution time and is not updated when the referent changes.
	Reply *ReplyPreview
}

// ReplyPreview is the minimal rendering of a replied-to message.
type ReplyPreview struct {
	Author  string
	Content string
}

// view is the ordered, duplicate-free item list plus its id index. Not
// goroutine safe; the owning handle serializes access.
type view struct {
	items []Item
	index map[string]int
}

func newView() *view {
	return &view{index: make(map[string]int)}
}

// pos returns the insertion index keeping items sorted by (Time, ID).
func (v *view) pos(t int64, id string) int {
	return sort.Search(len(v.items), func(i int) bool {
		it := v.items[i]
		if it.Time != t {
			return it.Time > t
		}
		return it.ID > id
	})
}

// upsert inserts the item at its ordered position, or replaces the existing
// item with the same id in place. Replacement keeps the original position
// and Time, so edits never reorder the view. Returns true when the item was
// newly inserted.
func (v *view) upsert(it Item) bool {
	if i, ok := v.index[it.ID]; ok {
		it.Time = v.items[i].Time
		if it.Reply == nil {
			it.Reply = v.items[i].Reply
		}
		v.items[i] = it
		return false
	}
	i := v.pos(it.Time, it.ID)
	v.items = append(v.items, Item{})
	copy(v.items[i+1:], v.items[i:])
	v.items[i] = it
	for j := i; j < len(v.items); j++ {
		v.index[v.items[j].ID] = j
	}
	return true
}

// update replaces an existing item in place. An update for an id the view
// does not hold is dropped; the insert for it either already carried the
// newer state or was filtered out, and inventing a row here would show a
// partial record. Returns true when something changed.
func (v *view) update(it Item) bool {
	i, ok := v.index[it.ID]
	if !ok {
		return false
	}
	it.Time = v.items[i].Time
	if it.Reply == nil {
		it.Reply = v.items[i].Reply
	}
	v.items[i] = it
	return true
}

// remove deletes the item by id. Removing an absent id is a no-op, which
// makes delete events idempotent. Returns true when something was removed.
func (v *view) remove(id string) bool {
	i, ok := v.index[id]
	if !ok {
		return false
	}
	v.items = append(v.items[:i], v.items[i+1:]...)
	delete(v.index, id)
	for j := i; j < len(v.items); j++ {
		v.index[v.items[j].ID] = j
	}
	return true
}

// get returns the item with the given id, if present.
func (v *view) get(id string) (Item, bool) {
	i, ok := v.index[id]
	if !ok {
		return Item{}, false
	}
	return v.items[i], true
}

// snapshot copies the item slice for handing out to readers.
func (v *view) snapshot() []Item {
	out := make([]Item, len(v.items))
	copy(out, v.items)
	return out
}
