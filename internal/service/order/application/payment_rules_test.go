package application

import (
	"testing"

	"meridian/internal/contracts"
)

func TestPaymentRules(t *testing.T) {
	tests := []struct {
		name   string
		rule   string
		method contracts.PaymentMethod
		amount float64
		want   bool
	}{
		{name: "cash is free", rule: `paymentMethod == "CASH"`, method: contracts.PaymentMethodCash, want: true},
		{name: "card is not", rule: `paymentMethod == "CASH"`, method: contracts.PaymentMethodCreditCard, want: false},
		{name: "amount threshold", rule: `paymentMethod == "CASH" && amount < 100.0`, method: contracts.PaymentMethodCash, amount: 250, want: false},
		{name: "under threshold", rule: `paymentMethod == "CASH" && amount < 100.0`, method: contracts.PaymentMethodCash, amount: 50, want: true},
		{name: "never free", rule: `false`, method: contracts.PaymentMethodCash, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := NewPaymentRules(tt.rule)
			if err != nil {
				t.Fatalf("NewPaymentRules(%q): %v", tt.rule, err)
			}
			if got := rules.PaymentFree(tt.method, tt.amount, "u-1"); got != tt.want {
				t.Fatalf("PaymentFree=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaymentRulesRejectsBadExpressions(t *testing.T) {
	if _, err := NewPaymentRules(`paymentMethod ==`); err == nil {
		t.Fatal("expected compile error")
	}
	// 非布尔表达式同样拒绝
	if _, err := NewPaymentRules(`amount + 1.0`); err == nil {
		t.Fatal("expected type error for non-bool rule")
	}
}
