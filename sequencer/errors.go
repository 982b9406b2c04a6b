package sequencer

import "errors"

var (
	// ErrSequenceInFlight is returned by Execute while another sequence is
	// being driven.
	ErrSequenceInFlight = errors.New("a transaction sequence is already in progress")

	// ErrInsufficientAllowance is returned when the allowance read after a
	// confirmed approval does not cover the required amount.
	ErrInsufficientAllowance = errors.New("allowance is below the required amount after approval")

	// ErrSequenceReset is returned by Execute when Reset stopped the sequence
	// it was driving.
	ErrSequenceReset = errors.New("sequence reset")

	// ErrOwnProduct is returned for an order on a product the account listed.
	ErrOwnProduct = errors.New("cannot order your own product")

	// ErrOutOfStock is returned for an order exceeding the product stock.
	ErrOutOfStock = errors.New("product is out of stock")
)
