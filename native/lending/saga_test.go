package lending

import (
	"errors"
	"math/big"
	"testing"
)

func TestBeginTakesAccountReservation(t *testing.T) {
	table := newOperationTable()
	account := makeAddress(0x01)

	op, err := table.begin(ActionSupply, account, big.NewInt(100))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if op.State != StateInitiated {
		t.Fatalf("expected initiated state, got %s", op.State)
	}
	if !table.pending(account) {
		t.Fatalf("expected account reservation held")
	}
	if _, err := table.begin(ActionWithdraw, account, big.NewInt(1)); !errors.Is(err, ErrOperationInFlight) {
		t.Fatalf("expected ErrOperationInFlight, got %v", err)
	}
	// Reservations are per account.
	if _, err := table.begin(ActionWithdraw, makeAddress(0x02), big.NewInt(1)); err != nil {
		t.Fatalf("begin for other account: %v", err)
	}
}

func TestCommitReleasesReservation(t *testing.T) {
	table := newOperationTable()
	account := makeAddress(0x01)
	op, err := table.begin(ActionSupply, account, big.NewInt(100))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	table.commit(op)
	if table.pending(account) {
		t.Fatalf("commit must release the reservation")
	}
	if op.State != StateCommitted {
		t.Fatalf("expected committed, got %s", op.State)
	}
	if _, err := table.begin(ActionWithdraw, account, big.NewInt(1)); err != nil {
		t.Fatalf("begin after commit: %v", err)
	}
}

func TestAbortReleasesReservation(t *testing.T) {
	table := newOperationTable()
	account := makeAddress(0x01)
	op, err := table.begin(ActionBorrow, account, big.NewInt(100))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	table.abort(op)
	if table.pending(account) {
		t.Fatalf("abort must release the reservation")
	}
	if op.State != StateAborted {
		t.Fatalf("expected aborted, got %s", op.State)
	}
}

func TestTransitionForwardOnly(t *testing.T) {
	table := newOperationTable()
	op, err := table.begin(ActionBorrow, makeAddress(0x01), big.NewInt(100))
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := table.transition(op, StatePermissionChecked); err != nil {
		t.Fatalf("transition to permission checked: %v", err)
	}
	if err := table.transition(op, StateSettled); err != nil {
		t.Fatalf("transition to settled: %v", err)
	}
	if err := table.transition(op, StatePermissionChecked); !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState going backwards, got %v", err)
	}
	table.commit(op)
	if err := table.transition(op, StateSettled); !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState after terminal state, got %v", err)
	}
}

func TestOperationAmountCopied(t *testing.T) {
	table := newOperationTable()
	amount := big.NewInt(100)
	op, err := table.begin(ActionSupply, makeAddress(0x01), amount)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	amount.SetInt64(999)
	if op.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("operation amount must not alias caller memory, got %s", op.Amount)
	}
}
