package lending

import (
	"errors"

	"lendfi/native/common"
)

var (
	errNilState       = errors.New("lending: state not configured")
	errNoTokenService = errors.New("lending: asset transfer service not configured")
	errNoRiskGate     = errors.New("lending: risk gate not configured")

	// ErrUnauthorized rejects callers that are not the configured admin,
	// oracle or a registered market ledger.
	ErrUnauthorized = errors.New("lending: caller not authorized")
	// ErrActionPaused rejects entry points whose admin pause flag is set.
	ErrActionPaused = common.ErrActionPaused
	// ErrInvalidAmount rejects zero, negative or nil amounts.
	ErrInvalidAmount = errors.New("lending: amount must be positive")
	// ErrInsufficientBalance rejects operations exceeding the caller's
	// recorded position.
	ErrInsufficientBalance = errors.New("lending: insufficient balance")
	// ErrInsufficientLiquidity rejects outbound settlements exceeding the
	// ledger's custody cash.
	ErrInsufficientLiquidity = errors.New("lending: insufficient liquidity")
	// ErrMissingPrice denies actions that require a quote no oracle has
	// provided.
	ErrMissingPrice = errors.New("lending: price quote unavailable")
	// ErrBorrowNotAllowed reports a risk-gate denial delivered by the
	// controller.
	ErrBorrowNotAllowed = errors.New("lending: borrow not allowed")
	// ErrRemoteCallFailed reports that an asynchronous leg did not deliver.
	ErrRemoteCallFailed = errors.New("lending: remote call failed")
	// ErrNoOutstandingDebt rejects repayments for accounts without debt.
	ErrNoOutstandingDebt = errors.New("lending: no outstanding debt to repay")
	// ErrUnknownMarket reports a market the controller has no registration
	// or exchange-rate view for.
	ErrUnknownMarket = errors.New("lending: market not registered")
	// ErrOperationInFlight rejects a mutating operation while another
	// operation holds the account's reservation.
	ErrOperationInFlight = errors.New("lending: operation already in flight for account")
	// ErrInconsistentState aborts a continuation that observed a state the
	// issuing leg could not have produced.
	ErrInconsistentState = errors.New("lending: inconsistent state observed in continuation")
)
