package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotCanAccept(t *testing.T) {
	tests := []struct {
		name     string
		slot     Slot
		occupied int
		want     bool
	}{
		{"capacity 1 empty", Slot{Capacity: 1, Available: true}, 0, true},
		{"capacity 1 full", Slot{Capacity: 1, Available: true}, 1, false},
		{"capacity 3 with room", Slot{Capacity: 3, Available: true}, 2, true},
		{"capacity 3 full", Slot{Capacity: 3, Available: true}, 3, false},
		{"unlimited always accepts", Slot{Capacity: 0, Available: true}, 1000, true},
		{"unavailable rejects even empty", Slot{Capacity: 1, Available: false}, 0, false},
		{"unavailable unlimited rejects", Slot{Capacity: 0, Available: false}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.slot.CanAccept(tt.occupied))
		})
	}
}

func TestSlotValidate(t *testing.T) {
	ok := Slot{StartTime: "10:00", EndTime: "10:30", Capacity: 1}
	assert.NoError(t, ok.Validate())

	inverted := Slot{StartTime: "10:30", EndTime: "10:00"}
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidTimeRange)

	negative := Slot{StartTime: "10:00", EndTime: "10:30", Capacity: -1}
	assert.Error(t, negative.Validate())
}

func TestServiceValidate(t *testing.T) {
	scheduled := Service{OrderMode: OrderModeScheduled, DurationMin: 30}
	assert.NoError(t, scheduled.Validate())

	noDuration := Service{OrderMode: OrderModeScheduled}
	assert.Error(t, noDuration.Validate())

	onDemand := Service{OrderMode: OrderModeOnDemand}
	assert.NoError(t, onDemand.Validate())

	unknown := Service{OrderMode: "walk_in"}
	assert.Error(t, unknown.Validate())
}
