package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// An unset counter means "never set" and must stay out of the snapshot's JSON
// entirely; a zero counter is a real value and must survive.
func TestSnapshotOmitsUnsetCounters(t *testing.T) {
	zero := int64(0)
	b := &Blah{
		ID:        "b1",
		AuthorID:  "a1",
		GroupID:   "g1",
		Text:      "hi",
		Views:     &zero,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(NewInboxItem(b))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(payload, &raw))
	require.Contains(t, raw, "views")
	require.NotContains(t, raw, "up_votes")
	require.NotContains(t, raw, "down_votes")
	require.NotContains(t, raw, "opens")
}

func TestSnapshotSharesNothingMutable(t *testing.T) {
	votes := int64(7)
	b := &Blah{
		ID:       "b1",
		ImageIDs: []string{"i1", "i2"},
		UpVotes:  &votes,
	}
	item := NewInboxItem(b)

	b.ImageIDs[0] = "changed"
	votes = 99

	require.Equal(t, []string{"i1", "i2"}, item.ImageIDs)
	require.Equal(t, int64(7), *item.UpVotes)
}
