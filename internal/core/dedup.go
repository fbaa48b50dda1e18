package core

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// EventKey is the value identity used to deduplicate exported events: the
// timestamp, the user, the source IP and the channel (app for sign-ins,
// protocol for legacy auth, activity/operation for audit and mailbox rows).
// Two rows with equal keys describe the same event even if other columns
// differ, which happens when overlapping exports are merged.
type EventKey struct {
	Timestamp int64
	UserID    string
	SourceIP  string
	Channel   string
}

// Hash returns a 64-bit murmur3 fingerprint of the key. Fields are
// NUL-separated so ("ab","c") and ("a","bc") hash differently.
func (k EventKey) Hash() uint64 {
	h := murmur3.New64()
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(k.Timestamp))
	h.Write(ts[:])
	h.Write([]byte{0})
	h.Write([]byte(k.UserID))
	h.Write([]byte{0})
	h.Write([]byte(k.SourceIP))
	h.Write([]byte{0})
	h.Write([]byte(k.Channel))
	return h.Sum64()
}

// Keyed is implemented by every exported event type.
type Keyed interface {
	Key() EventKey
}

// Dedup returns events with duplicate identities removed, keeping the first
// occurrence and the original order. Hash collisions are resolved by
// comparing the full key.
func Dedup[T any, P interface {
	*T
	Keyed
}](events []T) []T {
	seen := make(map[uint64][]EventKey, len(events))
	out := make([]T, 0, len(events))
	for i := range events {
		key := P(&events[i]).Key()
		h := key.Hash()
		dup := false
		for _, k := range seen[h] {
			if k == key {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], key)
		out = append(out, events[i])
	}
	return out
}
