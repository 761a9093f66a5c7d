package substrate

import (
	"bytes"
	"context"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vedhavyas/go-subkey/v2"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/events"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
)

// DefaultSS58Prefix is the generic Substrate address prefix, used when a
// domain's shared configuration does not pin one.
const DefaultSS58Prefix uint16 = 42

// ResourceStore looks up persisted resources by id. Substrate deposit events
// do not carry the transfer type, so the resource row is the authority for
// type and decimals.
type ResourceStore interface {
	GetResource(ctx context.Context, id string) (*db.Resource, error)
}

// Parser decodes one Substrate domain's SygmaBridge pallet events.
type Parser struct {
	domain    *config.Domain
	shared    *config.SharedConfig
	resources ResourceStore
	registry  *parser.Registry
	logger    *zap.Logger
}

// NewParser creates the parser for one Substrate domain.
func NewParser(domain *config.Domain, shared *config.SharedConfig, resources ResourceStore, logger *zap.Logger) *Parser {
	return &Parser{
		domain:    domain,
		shared:    shared,
		resources: resources,
		logger:    logger.With(zap.Uint8("domain_id", domain.ID), zap.String("domain", domain.Name)),
	}
}

// Bind wires the parser to the full registry for destination resolution.
func (p *Parser) Bind(registry *parser.Registry) {
	p.registry = registry
}

func (p *Parser) ss58Prefix() uint16 {
	if p.domain.SS58Prefix != 0 {
		return p.domain.SS58Prefix
	}
	return DefaultSS58Prefix
}

// ParseDeposit decodes a SygmaBridge.Deposit pallet event. The resource is
// resolved from persisted resource rows; a resource id absent from that set
// fails the decode so the pipeline can skip the event with a warning.
func (p *Parser) ParseDeposit(ctx context.Context, l parser.Log) (*events.Deposit, error) {
	ev, ok := l.Raw.(*DepositEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected raw event type %T", l.Raw)
	}

	destDomain, ok := p.shared.Domain(uint8(ev.DestDomainID))
	if !ok {
		return nil, fmt.Errorf("destination domain %d: %w", ev.DestDomainID, parser.ErrDomainNotFound)
	}

	resourceID := common.Hash(ev.ResourceID).Hex()
	resource, err := p.resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up resource %s: %w", resourceID, err)
	}
	if resource == nil {
		return nil, fmt.Errorf("resource %s: %w", resourceID, parser.ErrResourceNotFound)
	}

	transferType := events.TransferType(resource.Type)
	decimals := 0
	if resource.Decimals != nil {
		decimals = *resource.Decimals
	}

	amount, err := parser.DecodeAmount(ev.DepositData, decimals, transferType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode deposit amount: %w", err)
	}

	return &events.Deposit{
		TransferID:      events.TransferID(uint64(ev.DepositNonce), p.domain.ID, uint8(ev.DestDomainID)),
		BlockNumber:     l.BlockNumber,
		DepositNonce:    uint64(ev.DepositNonce),
		FromDomainID:    p.domain.ID,
		ToDomainID:      uint8(ev.DestDomainID),
		Sender:          subkey.SS58Encode(ev.Sender.ToBytes(), p.ss58Prefix()),
		ResourceID:      resourceID,
		Destination:     p.registry.ResolveDestination(ev.DepositData, transferType, destDomain, p.logger),
		Amount:          amount,
		Type:            transferType,
		TxHash:          l.TxHash,
		Timestamp:       l.Timestamp,
		DepositData:     common.Bytes2Hex(ev.DepositData),
		HandlerResponse: common.Bytes2Hex(ev.HandlerResponse),
	}, nil
}

// ParseProposalExecution decodes a SygmaBridge.ProposalExecution pallet event.
func (p *Parser) ParseProposalExecution(l parser.Log) (*events.Execution, error) {
	ev, ok := l.Raw.(*ProposalExecutionEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected raw event type %T", l.Raw)
	}

	return &events.Execution{
		TransferID:   events.TransferID(uint64(ev.DepositNonce), uint8(ev.OriginDomainID), p.domain.ID),
		BlockNumber:  l.BlockNumber,
		DepositNonce: uint64(ev.DepositNonce),
		FromDomainID: uint8(ev.OriginDomainID),
		ToDomainID:   p.domain.ID,
		TxHash:       l.TxHash,
		Timestamp:    l.Timestamp,
	}, nil
}

// ParseFailedHandlerExecution decodes a SygmaBridge.FailedHandlerExecution
// pallet event. The pallet error bytes rarely carry readable text; whatever
// printable content remains after trimming padding is kept as the message.
func (p *Parser) ParseFailedHandlerExecution(l parser.Log) (*events.FailedExecution, error) {
	ev, ok := l.Raw.(*FailedHandlerExecutionEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected raw event type %T", l.Raw)
	}

	return &events.FailedExecution{
		TransferID:   events.TransferID(uint64(ev.DepositNonce), uint8(ev.OriginDomainID), p.domain.ID),
		BlockNumber:  l.BlockNumber,
		DepositNonce: uint64(ev.DepositNonce),
		FromDomainID: uint8(ev.OriginDomainID),
		ToDomainID:   p.domain.ID,
		TxHash:       l.TxHash,
		Timestamp:    l.Timestamp,
		Message:      string(bytes.Trim(ev.Error, "\x00")),
	}, nil
}

// ParseFeeCollected decodes a SygmaBridge.FeeCollected pallet event. Fees on
// Substrate domains are paid in the native token; correlation to the transfer
// happens later through the tx identifier.
func (p *Parser) ParseFeeCollected(l parser.Log) (*events.Fee, error) {
	ev, ok := l.Raw.(*FeeCollectedEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected raw event type %T", l.Raw)
	}

	return &events.Fee{
		ID:           l.TxHash,
		Amount:       ev.FeeAmount.String(),
		TokenSymbol:  p.domain.NativeTokenSymbol,
		Decimals:     p.domain.NativeTokenDecimals,
		TxIdentifier: l.TxHash,
	}, nil
}

// ParseDestination decodes recipient bytes as a SCALE MultiLocation and
// renders a single X1 AccountId32 junction as an SS58 address. Any other
// location shape yields an empty string.
func (p *Parser) ParseDestination(recipient []byte) (string, error) {
	var location MultiLocation
	if err := scale.NewDecoder(bytes.NewReader(recipient)).Decode(&location); err != nil {
		return "", fmt.Errorf("failed to decode multilocation: %w", err)
	}
	if !location.Interior.IsX1 || !location.Interior.X1.IsAccountID32 {
		return "", nil
	}
	return subkey.SS58Encode(location.Interior.X1.AccountID32[:], p.ss58Prefix()), nil
}
