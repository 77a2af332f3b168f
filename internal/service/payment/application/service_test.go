package application

import (
	"context"
	"testing"

	"meridian/internal/contracts"
)

func TestChargeWithinLimit(t *testing.T) {
	svc := NewService(1000)
	result := svc.Charge(context.Background(), contracts.PaymentRequestEvent{OrderID: "o-1", UserID: "u-1", Amount: 500})
	if !result.Success {
		t.Fatalf("charge declined: %s", result.Message)
	}
}

func TestChargeOverLimitDeclined(t *testing.T) {
	svc := NewService(1000)
	result := svc.Charge(context.Background(), contracts.PaymentRequestEvent{OrderID: "o-1", Amount: 1500})
	if result.Success {
		t.Fatal("expected decline over limit")
	}
}

func TestChargeInvalidAmount(t *testing.T) {
	svc := NewService(0)
	result := svc.Charge(context.Background(), contracts.PaymentRequestEvent{OrderID: "o-1", Amount: -3})
	if result.Success {
		t.Fatal("expected decline for non-positive amount")
	}
}

func TestChargeIsIdempotent(t *testing.T) {
	svc := NewService(0)
	ev := contracts.PaymentRequestEvent{OrderID: "o-1", Amount: 100}
	first := svc.Charge(context.Background(), ev)
	second := svc.Charge(context.Background(), ev)
	if !first.Success || !second.Success {
		t.Fatalf("first=%v second=%v", first.Success, second.Success)
	}
}

func TestRefundRequiresCharge(t *testing.T) {
	svc := NewService(0)
	result := svc.Refund(context.Background(), contracts.PaymentRefundEvent{OrderID: "o-ghost", Amount: 100})
	if result.Success {
		t.Fatal("refund without a charge must fail")
	}
}

func TestRefundRoundTrip(t *testing.T) {
	svc := NewService(0)
	ctx := context.Background()

	svc.Charge(ctx, contracts.PaymentRequestEvent{OrderID: "o-1", Amount: 100})

	refund := svc.Refund(ctx, contracts.PaymentRefundEvent{OrderID: "o-1", Amount: 100})
	if !refund.Success {
		t.Fatalf("refund failed: %s", refund.Message)
	}
	// 重复退款幂等
	again := svc.Refund(ctx, contracts.PaymentRefundEvent{OrderID: "o-1", Amount: 100})
	if !again.Success {
		t.Fatalf("repeated refund failed: %s", again.Message)
	}
}

func TestRefundOverChargedAmount(t *testing.T) {
	svc := NewService(0)
	ctx := context.Background()

	svc.Charge(ctx, contracts.PaymentRequestEvent{OrderID: "o-1", Amount: 100})
	result := svc.Refund(ctx, contracts.PaymentRefundEvent{OrderID: "o-1", Amount: 200})
	if result.Success {
		t.Fatal("refund above charged amount must fail")
	}
}
