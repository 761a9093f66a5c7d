// Package events defines the canonical decoded record shapes produced by the
// per-chain parsers and consumed by the transfer reconciler.
package events

import (
	"fmt"
	"time"
)

// TransferType mirrors the resource types configured for the bridge.
type TransferType string

const (
	FungibleTransfer              TransferType = "fungible"
	SemiFungibleTransfer          TransferType = "semiFungible"
	NonFungibleTransfer           TransferType = "nonFungible"
	PermissionedGenericTransfer   TransferType = "permissionedGeneric"
	PermissionlessGenericTransfer TransferType = "permissionlessGeneric"
)

// TransferID derives the composite transfer identity. The deposit nonce is only
// unique per (from, to) domain pair, so all three parts are required to
// correlate a source-chain deposit with its destination-chain execution.
func TransferID(depositNonce uint64, fromDomainID, toDomainID uint8) string {
	return fmt.Sprintf("%d-%d-%d", depositNonce, fromDomainID, toDomainID)
}

// Deposit is the decoded source-chain half of a transfer.
type Deposit struct {
	TransferID      string
	BlockNumber     uint64
	DepositNonce    uint64
	FromDomainID    uint8
	ToDomainID      uint8
	Sender          string
	ResourceID      string
	Destination     string
	Amount          string
	Type            TransferType
	TxHash          string
	Timestamp       time.Time
	DepositData     string
	HandlerResponse string

	// Fee is set on EVM domains where the fee is computed at deposit time
	// through the fee handler router. Nil on domains that emit fee events.
	Fee *Fee
}

// Execution is the decoded destination-chain half of a successfully executed
// transfer.
type Execution struct {
	TransferID   string
	BlockNumber  uint64
	DepositNonce uint64
	FromDomainID uint8
	ToDomainID   uint8
	TxHash       string
	Timestamp    time.Time
}

// FailedExecution is the decoded destination-chain half of a transfer whose
// handler execution reverted.
type FailedExecution struct {
	TransferID   string
	BlockNumber  uint64
	DepositNonce uint64
	FromDomainID uint8
	ToDomainID   uint8
	TxHash       string
	Timestamp    time.Time
	Message      string
}

// Fee is the fee charged for a transfer. On EVM domains it is attached to the
// deposit directly; on Substrate domains it arrives as a standalone record and
// is correlated to the deposit by TxIdentifier.
type Fee struct {
	ID           string
	Amount       string
	TokenAddress string
	TokenSymbol  string
	Decimals     int
	TxIdentifier string
}
