package ident

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ID is a 12-byte, strictly orderable identifier. The byte order is the sort
// order: an ID allocated later always compares greater than one allocated
// earlier by the same Allocator. The boundary representation is the 24
// character lowercase hex string, which preserves the byte ordering.
type ID [12]byte

// Nil is the zero ID.
var Nil ID

// Parse decodes a 24-character hex token into an ID.
func Parse(s string) (ID, error) {
	if len(s) != 24 {
		return Nil, fmt.Errorf("invalid id %q: expected 24 hex characters", s)
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

// Hex returns the 24-character hex form of the ID.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string { return id.Hex() }

// IsZero reports whether the ID is the zero value.
func (id ID) IsZero() bool { return id == Nil }

// Compare orders two IDs byte-wise: -1, 0, or 1.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool { return id.Compare(other) < 0 }

// MarshalText encodes the ID as its hex form, so IDs embedded in structs
// round-trip through encoding/json (cache payloads, API responses).
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText decodes the hex form produced by MarshalText.
func (id *ID) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Allocator produces identifiers. Implementations must guarantee strict
// monotonic allocation: every NewID call returns an ID greater than all IDs
// the allocator previously returned, including across concurrent callers.
type Allocator interface {
	NewID() ID
}

// ObjectIDs returns the default allocator, backed by BSON ObjectID generation
// (4-byte unix seconds + 5-byte process-unique random + 3-byte atomic
// counter). Within a process the counter makes allocation strictly
// increasing; the time prefix keeps IDs roughly ordered across restarts.
func ObjectIDs() Allocator { return objectIDAllocator{} }

type objectIDAllocator struct{}

func (objectIDAllocator) NewID() ID { return ID(bson.NewObjectID()) }

// Sequence returns a deterministic allocator that encodes an atomic counter
// in the trailing bytes of the ID. Intended for tests that need predictable,
// strictly increasing identifiers.
func Sequence(start uint64) Allocator {
	s := &sequenceAllocator{}
	s.next.Store(start)
	return s
}

type sequenceAllocator struct {
	next atomic.Uint64
}

func (s *sequenceAllocator) NewID() ID {
	var id ID
	binary.BigEndian.PutUint64(id[4:], s.next.Add(1))
	return id
}
