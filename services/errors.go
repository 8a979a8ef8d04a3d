package services

import "errors"

var (
	// ErrUpstream wraps social graph and address book failures. It must never be read as
	// "ineligible": the pipeline turns it into an InternalError decision.
	ErrUpstream         = errors.New("upstream query failed")
	ErrIdentityNotFound = errors.New("identity not found in address book")
	ErrUnexpectedSchema = errors.New("unexpected upstream response schema")

	// ErrTransfer wraps chain submission failures. There is no automatic retry.
	ErrTransfer = errors.New("token transfer failed")
	// ErrRecipientFunded is returned by the balance guard when the recipient already holds at
	// least the configured minimum native balance.
	ErrRecipientFunded = errors.New("recipient already funded")

	// ErrPersistence wraps ledger write failures.
	ErrPersistence = errors.New("ledger write failed")

	ErrCapReached     = errors.New("claim capacity reached for current window")
	ErrAlreadyClaimed = errors.New("identity or wallet already claimed in current window")
	ErrClaimInFlight  = errors.New("claim already in flight for identity or wallet")
	ErrNotFound       = errors.New("record not found")
)
