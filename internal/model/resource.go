package model

import (
	"fmt"
	"sort"
)

// ResourceID names one lockable unit of inventory: a single seat within a
// single show.  It is a pure value type; two ResourceIDs are equal when both
// fields match, and the total order defined by Less is what the reservation
// coordinator relies on for deadlock-free multi-seat acquisition.
//
// Fields:
//  ShowID – show whose inventory the seat belongs to.
//  SeatID – seat label within the show (e.g. "A1").
type ResourceID struct {
	ShowID uint64
	SeatID string
}

// String renders the identifier in the canonical "showID:seatID" form used
// in logs and event payloads.
func (r ResourceID) String() string {
	return fmt.Sprintf("%d:%s", r.ShowID, r.SeatID)
}

// Less reports whether r orders before other.  Ordering is by show first and
// then lexicographically by seat label, which gives every caller the same
// acquisition order for any overlapping seat set.
func (r ResourceID) Less(other ResourceID) bool {
	if r.ShowID != other.ShowID {
		return r.ShowID < other.ShowID
	}
	return r.SeatID < other.SeatID
}

// SortResources sorts a slice of ResourceIDs into the canonical total order
// in place.
func SortResources(ids []ResourceID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
