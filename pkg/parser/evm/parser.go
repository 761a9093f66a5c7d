// Package evm decodes Sygma bridge contract logs emitted on EVM domains.
package evm

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/events"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
)

const bridgeABIJSON = `[
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"uint8","name":"destinationDomainID","type":"uint8"},
		{"indexed":false,"internalType":"bytes32","name":"resourceID","type":"bytes32"},
		{"indexed":false,"internalType":"uint64","name":"depositNonce","type":"uint64"},
		{"indexed":true,"internalType":"address","name":"user","type":"address"},
		{"indexed":false,"internalType":"bytes","name":"data","type":"bytes"},
		{"indexed":false,"internalType":"bytes","name":"handlerResponse","type":"bytes"}],
	 "name":"Deposit","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"uint8","name":"originDomainID","type":"uint8"},
		{"indexed":false,"internalType":"uint64","name":"depositNonce","type":"uint64"},
		{"indexed":false,"internalType":"bytes32","name":"dataHash","type":"bytes32"},
		{"indexed":false,"internalType":"bytes","name":"handlerResponse","type":"bytes"}],
	 "name":"ProposalExecution","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"bytes","name":"lowLevelData","type":"bytes"},
		{"indexed":false,"internalType":"uint8","name":"originDomainID","type":"uint8"},
		{"indexed":false,"internalType":"uint64","name":"depositNonce","type":"uint64"}],
	 "name":"FailedHandlerExecution","type":"event"}
]`

var (
	bridgeABI abi.ABI

	// Topic0 hashes used by the log sources to filter bridge events.
	DepositSig                = common.Hash{}
	ProposalExecutionSig      = common.Hash{}
	FailedHandlerExecutionSig = common.Hash{}
)

func init() {
	var err error
	bridgeABI, err = abi.JSON(strings.NewReader(bridgeABIJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse bridge ABI: %v", err))
	}
	DepositSig = bridgeABI.Events["Deposit"].ID
	ProposalExecutionSig = bridgeABI.Events["ProposalExecution"].ID
	FailedHandlerExecutionSig = bridgeABI.Events["FailedHandlerExecution"].ID
}

// Parser decodes one EVM domain's bridge logs.
type Parser struct {
	domain   *config.Domain
	shared   *config.SharedConfig
	fees     *FeeCalculator
	registry *parser.Registry
	logger   *zap.Logger
}

// NewParser creates the parser for one EVM domain. The fee calculator may be
// nil for domains without a fee handler router.
func NewParser(domain *config.Domain, shared *config.SharedConfig, fees *FeeCalculator, logger *zap.Logger) *Parser {
	return &Parser{
		domain: domain,
		shared: shared,
		fees:   fees,
		logger: logger.With(zap.Uint8("domain_id", domain.ID), zap.String("domain", domain.Name)),
	}
}

// Bind wires the parser to the full registry for destination resolution.
func (p *Parser) Bind(registry *parser.Registry) {
	p.registry = registry
}

type depositLog struct {
	DestinationDomainID uint8
	ResourceID          [32]byte
	DepositNonce        uint64
	Data                []byte
	HandlerResponse     []byte
}

// ParseDeposit decodes a Deposit log into a canonical deposit record. The
// sender is recovered from the indexed user topic; amount, destination and
// fee are derived from the deposit payload.
func (p *Parser) ParseDeposit(ctx context.Context, l parser.Log) (*events.Deposit, error) {
	raw, ok := l.Raw.(ethtypes.Log)
	if !ok {
		return nil, fmt.Errorf("unexpected raw log type %T", l.Raw)
	}
	if len(raw.Topics) < 2 {
		return nil, fmt.Errorf("deposit log %s missing indexed user topic", l.TxHash)
	}

	var ev depositLog
	if err := bridgeABI.UnpackIntoInterface(&ev, "Deposit", raw.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack deposit log: %w", err)
	}

	destDomain, ok := p.shared.Domain(ev.DestinationDomainID)
	if !ok {
		return nil, fmt.Errorf("destination domain %d: %w", ev.DestinationDomainID, parser.ErrDomainNotFound)
	}

	resourceID := common.Hash(ev.ResourceID).Hex()
	resource, ok := p.domain.Resource(resourceID)
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", resourceID, parser.ErrResourceNotFound)
	}
	transferType := events.TransferType(resource.Type)

	amount, err := parser.DecodeAmount(ev.Data, resource.Decimals, transferType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode deposit amount: %w", err)
	}

	sender := common.BytesToAddress(raw.Topics[1].Bytes())
	transferID := events.TransferID(ev.DepositNonce, p.domain.ID, ev.DestinationDomainID)

	deposit := &events.Deposit{
		TransferID:      transferID,
		BlockNumber:     l.BlockNumber,
		DepositNonce:    ev.DepositNonce,
		FromDomainID:    p.domain.ID,
		ToDomainID:      ev.DestinationDomainID,
		Sender:          sender.Hex(),
		ResourceID:      resourceID,
		Destination:     p.registry.ResolveDestination(ev.Data, transferType, destDomain, p.logger),
		Amount:          amount,
		Type:            transferType,
		TxHash:          l.TxHash,
		Timestamp:       l.Timestamp,
		DepositData:     common.Bytes2Hex(ev.Data),
		HandlerResponse: common.Bytes2Hex(ev.HandlerResponse),
	}
	if p.fees != nil {
		deposit.Fee = p.fees.CalculateFee(ctx, sender, ev.DestinationDomainID, ev.ResourceID, ev.Data, transferID, l.TxHash)
	}
	return deposit, nil
}

type proposalExecutionLog struct {
	OriginDomainID  uint8
	DepositNonce    uint64
	DataHash        [32]byte
	HandlerResponse []byte
}

// ParseProposalExecution decodes a ProposalExecution log. The executing chain
// is always this parser's domain, so the transfer id pairs the event's origin
// domain with the local domain id.
func (p *Parser) ParseProposalExecution(l parser.Log) (*events.Execution, error) {
	raw, ok := l.Raw.(ethtypes.Log)
	if !ok {
		return nil, fmt.Errorf("unexpected raw log type %T", l.Raw)
	}

	var ev proposalExecutionLog
	if err := bridgeABI.UnpackIntoInterface(&ev, "ProposalExecution", raw.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack proposal execution log: %w", err)
	}

	return &events.Execution{
		TransferID:   events.TransferID(ev.DepositNonce, ev.OriginDomainID, p.domain.ID),
		BlockNumber:  l.BlockNumber,
		DepositNonce: ev.DepositNonce,
		FromDomainID: ev.OriginDomainID,
		ToDomainID:   p.domain.ID,
		TxHash:       l.TxHash,
		Timestamp:    l.Timestamp,
	}, nil
}

type failedHandlerExecutionLog struct {
	LowLevelData   []byte
	OriginDomainID uint8
	DepositNonce   uint64
}

// ParseFailedHandlerExecution decodes a FailedHandlerExecution log. The
// revert reason buried in the low level data is extracted on a best-effort
// basis; an undecodable reason still yields a valid failure record.
func (p *Parser) ParseFailedHandlerExecution(l parser.Log) (*events.FailedExecution, error) {
	raw, ok := l.Raw.(ethtypes.Log)
	if !ok {
		return nil, fmt.Errorf("unexpected raw log type %T", l.Raw)
	}

	var ev failedHandlerExecutionLog
	if err := bridgeABI.UnpackIntoInterface(&ev, "FailedHandlerExecution", raw.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack failed handler execution log: %w", err)
	}

	return &events.FailedExecution{
		TransferID:   events.TransferID(ev.DepositNonce, ev.OriginDomainID, p.domain.ID),
		BlockNumber:  l.BlockNumber,
		DepositNonce: ev.DepositNonce,
		FromDomainID: ev.OriginDomainID,
		ToDomainID:   p.domain.ID,
		TxHash:       l.TxHash,
		Timestamp:    l.Timestamp,
		Message:      revertMessage(ev.LowLevelData),
	}, nil
}

// ParseDestination renders recipient bytes as a lowercase hex EVM address.
func (p *Parser) ParseDestination(recipient []byte) (string, error) {
	if len(recipient) != common.AddressLength {
		return "", fmt.Errorf("recipient is %d bytes, want %d", len(recipient), common.AddressLength)
	}
	return "0x" + common.Bytes2Hex(recipient), nil
}

// errorSelector is the 4-byte selector of the solidity Error(string) revert.
var errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// revertMessage extracts a human readable reason from handler revert data.
// Standard Error(string) reverts are ABI decoded; anything else falls back to
// trimming the trailing word, which covers handlers that pack a short reason
// at the end of the payload.
func revertMessage(lowLevelData []byte) string {
	if len(lowLevelData) == 0 {
		return ""
	}
	if len(lowLevelData) >= 68 && bytes.Equal(lowLevelData[:4], errorSelector) {
		if reason, err := abi.UnpackRevert(lowLevelData); err == nil {
			return reason
		}
	}
	if len(lowLevelData) < 32 {
		return string(bytes.Trim(lowLevelData, "\x00"))
	}
	return string(bytes.Trim(lowLevelData[len(lowLevelData)-32:], "\x00"))
}
