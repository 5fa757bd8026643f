package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/showgrid/booking/internal/model"
)

func TestResourceIDOrdering(t *testing.T) {
	ids := []model.ResourceID{
		{ShowID: 2, SeatID: "A1"},
		{ShowID: 1, SeatID: "B2"},
		{ShowID: 1, SeatID: "A10"},
		{ShowID: 1, SeatID: "A2"},
	}
	model.SortResources(ids)

	// Show first, then lexicographic seat label ("A10" < "A2" lexically).
	assert.Equal(t, []model.ResourceID{
		{ShowID: 1, SeatID: "A10"},
		{ShowID: 1, SeatID: "A2"},
		{ShowID: 1, SeatID: "B2"},
		{ShowID: 2, SeatID: "A1"},
	}, ids)
}

func TestResourceIDString(t *testing.T) {
	assert.Equal(t, "42:C7", model.ResourceID{ShowID: 42, SeatID: "C7"}.String())
}

func TestBookingStateTerminal(t *testing.T) {
	assert.False(t, model.StateHeld.Terminal())
	assert.False(t, model.StatePendingPayment.Terminal())
	assert.True(t, model.StateConfirmed.Terminal())
	assert.True(t, model.StateExpired.Terminal())
	assert.True(t, model.StateCancelled.Terminal())
}

func TestBookingClone(t *testing.T) {
	b := &model.Booking{SeatIDs: []string{"A1"}}
	cp := b.Clone()
	cp.SeatIDs[0] = "B9"
	assert.Equal(t, "A1", b.SeatIDs[0])
}
