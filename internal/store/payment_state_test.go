package store

import (
	"errors"
	"testing"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func TestPaymentState_RefundOnce(t *testing.T) {
	ps := NewPaymentState(clock.NewSim(clock.DefaultStart))
	tx := ps.RecordStarPayment(5, 999, 100, "sku-1")

	got, err := ps.Refund(5, tx.ChargeID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !got.Refunded || got.Amount != 100 {
		t.Errorf("refunded = %+v", got)
	}
	if _, err := ps.Refund(5, tx.ChargeID); !errors.Is(err, ErrAlreadyRefunded) {
		t.Errorf("second refund err = %v, want ErrAlreadyRefunded", err)
	}
}

func TestPaymentState_RefundChecks(t *testing.T) {
	ps := NewPaymentState(clock.NewSim(clock.DefaultStart))
	tx := ps.RecordStarPayment(5, 999, 50, "")
	if _, err := ps.Refund(6, tx.ChargeID); !errors.Is(err, ErrChargeUserMismatch) {
		t.Errorf("wrong user err = %v", err)
	}
	if _, err := ps.Refund(5, "nope"); !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("unknown charge err = %v", err)
	}
	if stored, _ := ps.Transaction(tx.ChargeID); stored.Refunded {
		t.Error("failed refund latched the transaction")
	}
}

func TestPaymentState_PreCheckoutAnsweredOnce(t *testing.T) {
	ps := NewPaymentState(clock.NewSim(clock.DefaultStart))
	q := ps.NewPreCheckout(botapi.User{ID: 5}, botapi.CurrencyStars, 10, "p")
	if _, err := ps.AnswerPreCheckout(q.ID, true, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := ps.AnswerPreCheckout(q.ID, true, ""); !errors.Is(err, ErrQueryAnswered) {
		t.Errorf("second answer err = %v", err)
	}
	if _, err := ps.AnswerPreCheckout("x", true, ""); !errors.Is(err, ErrQueryNotFound) {
		t.Errorf("unknown query err = %v", err)
	}
}

func TestPaymentState_TransactionsPaging(t *testing.T) {
	ps := NewPaymentState(clock.NewSim(clock.DefaultStart))
	for i := 0; i < 5; i++ {
		ps.RecordStarPayment(int64(i), 999, 10*(i+1), "")
	}
	if got := ps.Transactions(0, 2); len(got) != 2 {
		t.Errorf("limit 2 returned %d", len(got))
	}
	if got := ps.Transactions(4, 0); len(got) != 1 {
		t.Errorf("offset 4 returned %d", len(got))
	}
	if got := ps.Transactions(10, 0); got != nil {
		t.Errorf("offset past end returned %d", len(got))
	}
}
