package domain

import (
	"errors"
	"testing"
)

func TestReserveAndRelease(t *testing.T) {
	r, err := NewRecord(1001, 10)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}

	if err := r.Reserve(4); err != nil {
		t.Fatalf("Reserve(4): %v", err)
	}
	if r.Available() != 6 || r.ReservedQuantity != 4 {
		t.Fatalf("after reserve: available=%d reserved=%d", r.Available(), r.ReservedQuantity)
	}

	// 余量只剩 6，再预占 7 必须失败且状态不变
	if err := r.Reserve(7); !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("expected ErrInsufficientAvailability, got %v", err)
	}
	if r.ReservedQuantity != 4 {
		t.Fatalf("failed reserve mutated state: reserved=%d", r.ReservedQuantity)
	}

	if err := r.ReleaseReserved(4); err != nil {
		t.Fatalf("ReleaseReserved(4): %v", err)
	}
	if r.ReservedQuantity != 0 || r.Quantity != 10 {
		t.Fatalf("after release: quantity=%d reserved=%d", r.Quantity, r.ReservedQuantity)
	}

	if err := r.ReleaseReserved(1); !errors.Is(err, ErrOverRelease) {
		t.Fatalf("expected ErrOverRelease, got %v", err)
	}
}

func TestReserveExactlyAvailable(t *testing.T) {
	r, _ := NewRecord(1001, 5)
	if err := r.Reserve(5); err != nil {
		t.Fatalf("reserving the full quantity must succeed: %v", err)
	}
	if r.Available() != 0 {
		t.Fatalf("available=%d, want 0", r.Available())
	}
	if err := r.Reserve(1); !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("expected ErrInsufficientAvailability, got %v", err)
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name         string
		quantity     int
		reserved     int
		reduce       int
		wantErr      error
		wantQty      int
		wantReserved int
		wantClamped  int
	}{
		{name: "normal commit", quantity: 10, reserved: 3, reduce: 3, wantQty: 7, wantReserved: 3, wantClamped: 0},
		{name: "reduce below reserved clamps", quantity: 10, reserved: 8, reduce: 5, wantQty: 5, wantReserved: 5, wantClamped: 3},
		{name: "over reduce rejected", quantity: 4, reserved: 0, reduce: 5, wantErr: ErrOverReduce, wantQty: 4, wantReserved: 0},
		{name: "reduce to zero", quantity: 5, reserved: 5, reduce: 5, wantQty: 0, wantReserved: 0, wantClamped: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{ProductID: 1, Quantity: tt.quantity, ReservedQuantity: tt.reserved}
			clamped, err := r.Reduce(tt.reduce)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Reduce: %v", err)
			}
			if r.Quantity != tt.wantQty || r.ReservedQuantity != tt.wantReserved {
				t.Fatalf("quantity=%d reserved=%d, want %d/%d", r.Quantity, r.ReservedQuantity, tt.wantQty, tt.wantReserved)
			}
			if clamped != tt.wantClamped {
				t.Fatalf("clamped=%d, want %d", clamped, tt.wantClamped)
			}
			if r.ReservedQuantity < 0 || r.ReservedQuantity > r.Quantity {
				t.Fatalf("invariant violated: 0 <= %d <= %d", r.ReservedQuantity, r.Quantity)
			}
		})
	}
}

func TestSetQuantityClamps(t *testing.T) {
	r := &Record{ProductID: 1, Quantity: 10, ReservedQuantity: 6}
	clamped := r.SetQuantity(4)
	if clamped != 2 {
		t.Fatalf("clamped=%d, want 2", clamped)
	}
	if r.Quantity != 4 || r.ReservedQuantity != 4 {
		t.Fatalf("quantity=%d reserved=%d, want 4/4", r.Quantity, r.ReservedQuantity)
	}
}

func TestNewRecordRejectsNegative(t *testing.T) {
	if _, err := NewRecord(1, -1); err == nil {
		t.Fatal("expected error for negative quantity")
	}
}
