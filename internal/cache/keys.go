package cache

import "fmt"

// State and item records share one flat keyspace; the two prefixes must never
// collide, so state keys use lowercase "i" and item keys uppercase "I".
const (
	stateKeyPrefix = "i:"
	itemKeyPrefix  = "I:"
)

// StateKey builds the inbox-state key for a (group, inbox) pair.
func StateKey(groupID string, inboxNumber int) string {
	return fmt.Sprintf("%s%s-%d", stateKeyPrefix, groupID, inboxNumber)
}

// ItemKey builds the inbox-item key for an item id.
func ItemKey(itemID string) string {
	return itemKeyPrefix + itemID
}
