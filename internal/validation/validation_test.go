package validation

import (
	"testing"

	"github.com/mmeshcher/campick-system/internal/model"
)

func TestIsValidOrderStatus(t *testing.T) {
	valid := []model.OrderStatus{
		model.OrderStatusPending,
		model.OrderStatusAccepted,
		model.OrderStatusPreparing,
		model.OrderStatusReady,
		model.OrderStatusPickedUp,
		model.OrderStatusDelivered,
		model.OrderStatusDiscarded,
		model.OrderStatusRejected,
	}
	for _, s := range valid {
		if !IsValidOrderStatus(s) {
			t.Errorf("status %q should be valid", s)
		}
	}

	if IsValidOrderStatus("shipped") {
		t.Error("unknown status should be invalid")
	}
	if IsValidOrderStatus("") {
		t.Error("empty status should be invalid")
	}
}

func TestIsValidVerificationStatus(t *testing.T) {
	if !IsValidVerificationStatus(model.VerificationVerified) {
		t.Error("verified should be valid")
	}
	if !IsValidVerificationStatus(model.VerificationRejected) {
		t.Error("rejected should be valid")
	}
	if IsValidVerificationStatus("maybe") {
		t.Error("unknown verification status should be invalid")
	}
}

func TestIsAllowedTransition(t *testing.T) {
	tests := []struct {
		from model.OrderStatus
		to   model.OrderStatus
		want bool
	}{
		{model.OrderStatusPending, model.OrderStatusAccepted, true},
		{model.OrderStatusPending, model.OrderStatusRejected, true},
		{model.OrderStatusAccepted, model.OrderStatusPreparing, true},
		{model.OrderStatusPreparing, model.OrderStatusReady, true},
		{model.OrderStatusReady, model.OrderStatusPickedUp, true},
		{model.OrderStatusReady, model.OrderStatusDelivered, true},
		{model.OrderStatusReady, model.OrderStatusDiscarded, true},
		{model.OrderStatusDelivered, model.OrderStatusPending, false},
		{model.OrderStatusRejected, model.OrderStatusAccepted, false},
		{model.OrderStatusPending, model.OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := IsAllowedTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("transition %s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestIsTerminalOrderStatus(t *testing.T) {
	for _, s := range []model.OrderStatus{model.OrderStatusDelivered, model.OrderStatusPickedUp, model.OrderStatusDiscarded, model.OrderStatusRejected} {
		if !IsTerminalOrderStatus(s) {
			t.Errorf("status %q should be terminal", s)
		}
	}
	if IsTerminalOrderStatus(model.OrderStatusPending) {
		t.Error("pending should not be terminal")
	}
}
