package model

import "time"

// Show describes one screening as the catalog collaborator reports it: the
// seat universe that may be reserved and the price attached to each seat.
// The booking engine only reads shows; all mutation happens in the catalog.
//
// Fields:
//  ID       – show identifier.
//  Title    – movie title, informational only.
//  StartsAt – scheduled start time.
//  Seats    – seat label -> price in cents; the key set is the seat universe.
type Show struct {
	ID       uint64
	Title    string
	StartsAt time.Time
	Seats    map[string]uint32
}

// HasSeat reports whether the label exists in the show's seat universe.
func (s *Show) HasSeat(label string) bool {
	_, ok := s.Seats[label]
	return ok
}
