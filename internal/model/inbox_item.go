package model

import "time"

// InboxItem is a denormalized snapshot of a blah at distribution time. It is
// what inbox collections and the cache actually hold; the live Blah row keeps
// changing, the snapshot does not (counters are refreshed only by
// re-snapshotting).
type InboxItem struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	GroupID   string    `json:"group_id"`
	Type      string    `json:"type,omitempty"`
	Text      string    `json:"text,omitempty"`
	ImageIDs  []string  `json:"image_ids,omitempty"`
	Badged    bool      `json:"badged,omitempty"`
	UpVotes   *int64    `json:"up_votes,omitempty"`
	DownVotes *int64    `json:"down_votes,omitempty"`
	Views     *int64    `json:"views,omitempty"`
	Opens     *int64    `json:"opens,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewInboxItem copies the blah's current field values into a fresh snapshot.
// Nothing mutable is shared with the source: the image list is cloned and
// absent counters stay absent rather than defaulting to zero.
func NewInboxItem(b *Blah) *InboxItem {
	item := &InboxItem{
		ID:        b.ID,
		AuthorID:  b.AuthorID,
		GroupID:   b.GroupID,
		Type:      b.TypeID,
		Text:      b.Text,
		Badged:    b.Badged,
		UpVotes:   cloneCounter(b.UpVotes),
		DownVotes: cloneCounter(b.DownVotes),
		Views:     cloneCounter(b.Views),
		Opens:     cloneCounter(b.Opens),
		CreatedAt: b.CreatedAt,
	}
	if len(b.ImageIDs) > 0 {
		item.ImageIDs = append([]string(nil), b.ImageIDs...)
	}
	return item
}

func cloneCounter(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
