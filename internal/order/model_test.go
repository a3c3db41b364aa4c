package order

import "testing"

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		if !ValidStatus(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []string{"", "paid", "canceled", "wtf"} {
		if ValidStatus(s) {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestValidPaymentStatus(t *testing.T) {
	for _, s := range []string{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded} {
		if !ValidPaymentStatus(s) {
			t.Fatalf("%q should be valid", s)
		}
	}
	if ValidPaymentStatus("shipped") {
		t.Fatalf("order status leaked into payment statuses")
	}
}

func TestCancellable(t *testing.T) {
	if !Cancellable(StatusPending) || !Cancellable(StatusProcessing) {
		t.Fatalf("pending/processing deben ser cancelables")
	}
	for _, s := range []string{StatusShipped, StatusDelivered, StatusCancelled} {
		if Cancellable(s) {
			t.Fatalf("%q no debe ser cancelable", s)
		}
	}
}
