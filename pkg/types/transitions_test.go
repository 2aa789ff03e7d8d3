package types

import "testing"

func TestIsValidTransitionAllowsDocumentedEdges(t *testing.T) {
	t.Parallel()
	cases := []struct {
		prev, next OrderStatus
	}{
		{Initialized, Pending},
		{Pending, Accepted},
		{Pending, Canceled},
		{Accepted, PartiallyFilled},
		{PartiallyFilled, Filled},
		{Canceling, Canceled},
		{Canceling, Filled},
	}
	for _, c := range cases {
		if !IsValidTransition(c.prev, c.next) {
			t.Errorf("expected %s -> %s to be valid", c.prev, c.next)
		}
	}
}

func TestIsValidTransitionRejectsTerminalOutgoingEdges(t *testing.T) {
	t.Parallel()
	terminal := []OrderStatus{Filled, Canceled, Failed, Expired}
	for _, prev := range terminal {
		if IsValidTransition(prev, Pending) {
			t.Errorf("expected no outgoing transitions from terminal status %s", prev)
		}
	}
}

func TestIsValidTransitionRejectsSkippingBackwards(t *testing.T) {
	t.Parallel()
	if IsValidTransition(Filled, Accepted) {
		t.Fatal("expected filled -> accepted to be invalid")
	}
	if IsValidTransition(Canceled, PartiallyFilled) {
		t.Fatal("expected canceled -> partially_filled to be invalid")
	}
}
