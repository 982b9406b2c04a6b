package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxKind distinguishes the two writes of a sequence.
type TxKind string

const (
	TxKindApprove TxKind = "approve"
	TxKindAction  TxKind = "action"
)

// TxStatus is the derived status of a submitted write.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Resolved reports whether the status is terminal.
func (s TxStatus) Resolved() bool {
	return s == TxConfirmed || s == TxFailed
}

// TxHandle is an opaque reference to a submitted write.
type TxHandle struct {
	Kind   TxKind      `json:"kind"`
	Method string      `json:"method"`
	Hash   common.Hash `json:"hash"`
	Status TxStatus    `json:"status"`
}

// TxRecord is the journaled form of a TxHandle.
type TxRecord struct {
	TxHandle
	IntentID    string         `json:"intentId"`
	IntentKind  IntentKind     `json:"intentKind"`
	Account     common.Address `json:"account"`
	SubmittedAt time.Time      `json:"submittedAt"`
	ResolvedAt  time.Time      `json:"resolvedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
}
