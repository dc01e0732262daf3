package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccommodation_StayDays(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		want     int
	}{
		{"thirty minutes still bills one day", 30 * time.Minute, 1},
		{"one hour", time.Hour, 1},
		{"just under a day", 23 * time.Hour, 1},
		{"exactly one day", 24 * time.Hour, 1},
		{"a day and an hour", 25 * time.Hour, 2},
		{"three days exactly", 72 * time.Hour, 3},
		{"three days and change", 73 * time.Hour, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := base.Add(tt.duration)
			a := Accommodation{CheckIn: base, CheckOut: &out}
			if got := a.StayDays(time.Now()); got != tt.want {
				t.Errorf("StayDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAccommodation_StayDays_OpenEnded(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	a := Accommodation{CheckIn: now.Add(-49 * time.Hour)}

	if got := a.StayDays(now); got != 3 {
		t.Errorf("expected 3 days for a 49h open stay, got %d", got)
	}
}

func TestSumItems(t *testing.T) {
	billID := uuid.New()
	items := []*BillItem{
		{BillID: billID, ItemType: ItemConsultation, AmountCents: 50000},
		{BillID: billID, ItemType: ItemRoom, AmountCents: 6000},
		{BillID: billID, ItemType: ItemLab, AmountCents: 8000},
		{BillID: billID, ItemType: ItemMedicine, AmountCents: 500},
	}

	if got := SumItems(items); got != 64500 {
		t.Errorf("SumItems() = %d, want 64500", got)
	}

	if got := SumItems(nil); got != 0 {
		t.Errorf("SumItems(nil) = %d, want 0", got)
	}
}
