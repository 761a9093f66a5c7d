// Package substrate decodes SygmaBridge pallet events emitted on
// Substrate domains.
package substrate

import (
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// DepositEvent is the SygmaBridge.Deposit pallet event.
type DepositEvent struct {
	Phase           types.Phase
	DestDomainID    types.U8
	ResourceID      types.Bytes32
	DepositNonce    types.U64
	Sender          types.AccountID
	TransferType    types.U8
	DepositData     types.Bytes
	HandlerResponse types.Bytes
	Topics          []types.Hash
}

// ProposalExecutionEvent is the SygmaBridge.ProposalExecution pallet event.
type ProposalExecutionEvent struct {
	Phase          types.Phase
	OriginDomainID types.U8
	DepositNonce   types.U64
	DataHash       types.Hash
	Topics         []types.Hash
}

// FailedHandlerExecutionEvent is the SygmaBridge.FailedHandlerExecution
// pallet event.
type FailedHandlerExecutionEvent struct {
	Phase          types.Phase
	Error          types.Bytes
	OriginDomainID types.U8
	DepositNonce   types.U64
	Topics         []types.Hash
}

// FeeCollectedEvent is the SygmaBridge.FeeCollected pallet event.
type FeeCollectedEvent struct {
	Phase        types.Phase
	FeePayer     types.AccountID
	DestDomainID types.U8
	ResourceID   types.Bytes32
	FeeAmount    types.U128
	Topics       []types.Hash
}

// Events extends the runtime event records with the SygmaBridge pallet
// events so EventRecordsRaw.DecodeEventRecords can populate them by name.
type Events struct {
	types.EventRecords
	SygmaBridge_Deposit                []DepositEvent                //nolint:stylecheck,revive
	SygmaBridge_ProposalExecution      []ProposalExecutionEvent      //nolint:stylecheck,revive
	SygmaBridge_FailedHandlerExecution []FailedHandlerExecutionEvent //nolint:stylecheck,revive
	SygmaBridge_FeeCollected           []FeeCollectedEvent           //nolint:stylecheck,revive
}
