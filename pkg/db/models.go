package db

import (
	"time"

	"github.com/uptrace/bun"
)

// TransferStatus represents the current state of a cross-chain transfer
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusExecuted TransferStatus = "executed"
	TransferStatusFailed   TransferStatus = "failed"
)

// Domain is one blockchain participating in the bridge. Immutable except for
// the last indexed block watermark, which the pipeline advances.
type Domain struct {
	bun.BaseModel `bun:"table:domains"`

	ID               uint8     `json:"id" bun:"id,pk"`
	Name             string    `json:"name" bun:",notnull,type:varchar(64)"`
	Type             string    `json:"type" bun:",notnull,type:varchar(16)"`
	LastIndexedBlock uint64    `json:"last_indexed_block" bun:",notnull,default:0"`
	UpdatedAt        time.Time `json:"updated_at" bun:",nullzero,default:current_timestamp"`
}

// Resource is an asset class bridged between domains, keyed by its 32-byte
// resource id. Seeded from shared configuration and read-only afterwards.
type Resource struct {
	bun.BaseModel `bun:"table:resources"`

	ID       string `json:"id" bun:"id,pk,type:varchar(66)"`
	Type     string `json:"type" bun:",notnull,type:varchar(32)"`
	Decimals *int   `json:"decimals,omitempty" bun:"decimals"`
}

// Route is a (fromDomain, toDomain, resource) triple the bridge can move an
// asset across. Seeded from shared configuration.
type Route struct {
	bun.BaseModel `bun:"table:routes"`

	ID           string `json:"id" bun:"id,pk,type:varchar(80)"`
	FromDomainID uint8  `json:"from_domain_id" bun:",notnull"`
	ToDomainID   uint8  `json:"to_domain_id" bun:",notnull"`
	ResourceID   string `json:"resource_id" bun:",notnull,type:varchar(66)"`
}

// Account is an address that has initiated at least one deposit. Created
// lazily and never updated, except for the optional sanctions annotation.
type Account struct {
	bun.BaseModel `bun:"table:accounts"`

	Address          string  `json:"address" bun:"address,pk,type:varchar(128)"`
	SanctionedStatus *string `json:"sanctioned_status,omitempty" bun:"sanctioned_status,type:varchar(32)"`
}

// Deposit is the source-chain half of a transfer. Append-only fact.
type Deposit struct {
	bun.BaseModel `bun:"table:deposits"`

	ID              string    `json:"id" bun:"id,pk,type:varchar(80)"`
	Type            string    `json:"type" bun:",notnull,type:varchar(32)"`
	TxHash          string    `json:"tx_hash" bun:",notnull,type:varchar(128)"`
	BlockNumber     uint64    `json:"block_number" bun:",notnull"`
	DepositData     string    `json:"deposit_data" bun:",notnull,type:text"`
	HandlerResponse string    `json:"handler_response" bun:",type:text"`
	Timestamp       time.Time `json:"timestamp" bun:",nullzero"`
}

// Execution is the destination-chain half of a transfer. A non-nil Message
// records the decoded failure reason of a failed handler execution.
type Execution struct {
	bun.BaseModel `bun:"table:executions"`

	ID          string    `json:"id" bun:"id,pk,type:varchar(80)"`
	TxHash      string    `json:"tx_hash" bun:",notnull,type:varchar(128)"`
	BlockNumber uint64    `json:"block_number" bun:",notnull"`
	Timestamp   time.Time `json:"timestamp" bun:",nullzero"`
	Message     *string   `json:"message,omitempty" bun:"message,type:text"`
}

// Fee is the fee charged for a transfer. The fee token is recorded inline.
type Fee struct {
	bun.BaseModel `bun:"table:fees"`

	ID           string `json:"id" bun:"id,pk,type:varchar(80)"`
	Amount       string `json:"amount" bun:",notnull,type:numeric(78,0)"`
	TokenAddress string `json:"token_address" bun:",type:varchar(128)"`
	TokenSymbol  string `json:"token_symbol" bun:",type:varchar(32)"`
	Decimals     int    `json:"decimals" bun:",notnull,default:0"`
}

// Transfer is the mutable aggregate joining a deposit and/or execution and/or
// fee under one logical transfer, keyed by "<nonce>-<fromDomain>-<toDomain>".
type Transfer struct {
	bun.BaseModel `bun:"table:transfers,alias:t"`

	ID           string         `json:"id" bun:"id,pk,type:varchar(80)"`
	DepositNonce uint64         `json:"deposit_nonce" bun:",notnull"`
	ResourceID   *string        `json:"resource_id,omitempty" bun:"resource_id,type:varchar(66)"`
	FromDomainID uint8          `json:"from_domain_id" bun:",notnull"`
	ToDomainID   *uint8         `json:"to_domain_id,omitempty" bun:"to_domain_id"`
	Destination  *string        `json:"destination,omitempty" bun:"destination,type:varchar(128)"`
	Amount       *string        `json:"amount,omitempty" bun:"amount,type:varchar(128)"`
	Status       TransferStatus `json:"status" bun:",notnull,type:varchar(16)"`
	Message      *string        `json:"message,omitempty" bun:"message,type:text"`
	USDValue     *float64       `json:"usd_value,omitempty" bun:"usd_value"`
	AccountID    *string        `json:"account_id,omitempty" bun:"account_id,type:varchar(128)"`
	DepositID    *string        `json:"-" bun:"deposit_id,type:varchar(80)"`
	ExecutionID  *string        `json:"-" bun:"execution_id,type:varchar(80)"`
	FeeID        *string        `json:"-" bun:"fee_id,type:varchar(80)"`
	CreatedAt    time.Time      `json:"created_at" bun:",nullzero,default:current_timestamp"`
	UpdatedAt    time.Time      `json:"updated_at" bun:",nullzero,default:current_timestamp"`

	Deposit   *Deposit   `json:"deposit,omitempty" bun:"rel:belongs-to,join:deposit_id=id"`
	Execution *Execution `json:"execution,omitempty" bun:"rel:belongs-to,join:execution_id=id"`
	Fee       *Fee       `json:"fee,omitempty" bun:"rel:belongs-to,join:fee_id=id"`
	Account   *Account   `json:"account,omitempty" bun:"rel:belongs-to,join:account_id=address"`
}
