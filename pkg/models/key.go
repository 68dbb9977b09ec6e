package models

import "strings"

// ThreadKey is the partition key of every event belonging to one thread.
// It is derived deterministically from the participant+item pair so that
// every operation on the same conversation lands on the same partition.
type ThreadKey string

// NewThreadKey derives the key for a participant+item pair.
func NewThreadKey(participantID, itemID string) ThreadKey {
	return ThreadKey("thread#" + participantID + "#" + itemID)
}

// Valid reports whether the key has the derived shape. Keys embedding the
// separator inside ids are still accepted; this only guards empty parts.
func (k ThreadKey) Valid() bool {
	s := string(k)
	if !strings.HasPrefix(s, "thread#") {
		return false
	}
	rest := strings.TrimPrefix(s, "thread#")
	i := strings.IndexByte(rest, '#')
	return i > 0 && i < len(rest)-1
}
