package substrate

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/db"
	"github.com/chainsafe/sygma-indexer/pkg/events"
	"github.com/chainsafe/sygma-indexer/pkg/parser"
	"github.com/chainsafe/sygma-indexer/pkg/parser/evm"
)

var (
	alicePubKey  = common.Hex2Bytes("d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

	fungibleResourceID = "0x0000000000000000000000000000000000000000000000000000000000000300"
)

func substrateSharedConfig() *config.SharedConfig {
	return &config.SharedConfig{
		Domains: []config.Domain{
			{ID: 1, Name: "ethereum", Type: config.FamilyEVM},
			{
				ID:                  3,
				Name:                "phala",
				Type:                config.FamilySubstrate,
				NativeTokenSymbol:   "PHA",
				NativeTokenDecimals: 12,
			},
		},
	}
}

func testResourceStore() *MockResourceStore {
	decimals := 8
	return &MockResourceStore{
		GetResourceFunc: func(ctx context.Context, id string) (*db.Resource, error) {
			if strings.EqualFold(id, fungibleResourceID) {
				return &db.Resource{ID: id, Type: "fungible", Decimals: &decimals}, nil
			}
			return nil, nil
		},
	}
}

// newTestParser builds a bound Substrate parser for domain 3 with an EVM
// parser on domain 1 for cross-family destination resolution.
func newTestParser(t *testing.T, shared *config.SharedConfig, resources ResourceStore) *Parser {
	t.Helper()

	logger := zap.NewNop()
	source, _ := shared.Domain(3)
	dest, _ := shared.Domain(1)

	p := NewParser(source, shared, resources, logger)
	registry := parser.NewRegistry()
	registry.Register(3, p)
	registry.Register(1, evm.NewParser(dest, shared, nil, logger))
	registry.Bind()
	return p
}

func fungiblePayload(amount *big.Int, recipient []byte) []byte {
	payload := make([]byte, 64)
	amount.FillBytes(payload[:32])
	big.NewInt(int64(len(recipient))).FillBytes(payload[32:64])
	return append(payload, recipient...)
}

// multiLocationX1AccountID32 is the SCALE encoding of a MultiLocation with
// zero parents and an X1 AccountId32 junction on the Any network.
func multiLocationX1AccountID32(accountID []byte) []byte {
	payload := []byte{0x00, 0x01, 0x01, 0x00}
	return append(payload, accountID...)
}

func mustAccountID(t *testing.T, pubKey []byte) types.AccountID {
	t.Helper()

	account, err := types.NewAccountID(pubKey)
	if err != nil {
		t.Fatalf("Failed to build account id: %v", err)
	}
	return *account
}

func TestParser_ParseDeposit(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	recipient := common.Hex2Bytes("5c1f5961696bad2e73f73417f07ef55c62a2dc5b")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	deposit, err := p.ParseDeposit(context.Background(), parser.Log{
		Topic:       parser.TopicDeposit,
		BlockNumber: 4000000,
		Timestamp:   ts,
		TxHash:      "4000000-2",
		Raw: &DepositEvent{
			DestDomainID: 1,
			ResourceID:   types.Bytes32(common.HexToHash(fungibleResourceID)),
			DepositNonce: 12,
			Sender:       mustAccountID(t, alicePubKey),
			DepositData:  fungiblePayload(big.NewInt(400000000), recipient),
		},
	})
	if err != nil {
		t.Fatalf("ParseDeposit failed: %v", err)
	}

	if deposit.TransferID != "12-3-1" {
		t.Errorf("Expected transfer id 12-3-1, got %s", deposit.TransferID)
	}
	if deposit.Sender != aliceAddress {
		t.Errorf("Expected sender %s, got %s", aliceAddress, deposit.Sender)
	}
	if deposit.Amount != "4" {
		t.Errorf("Expected amount 4, got %s", deposit.Amount)
	}
	if deposit.Type != events.FungibleTransfer {
		t.Errorf("Expected fungible transfer, got %s", deposit.Type)
	}
	if deposit.Destination != "0x5c1f5961696bad2e73f73417f07ef55c62a2dc5b" {
		t.Errorf("Expected destination 0x5c1f5961696bad2e73f73417f07ef55c62a2dc5b, got %s", deposit.Destination)
	}
	if deposit.TxHash != "4000000-2" {
		t.Errorf("Expected tx identifier 4000000-2, got %s", deposit.TxHash)
	}
}

func TestParser_ParseDeposit_UnknownResource(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	_, err := p.ParseDeposit(context.Background(), parser.Log{
		Raw: &DepositEvent{
			DestDomainID: 1,
			ResourceID:   types.Bytes32(common.HexToHash("0xff")),
			DepositNonce: 13,
			Sender:       mustAccountID(t, alicePubKey),
			DepositData:  fungiblePayload(big.NewInt(1), nil),
		},
	})
	if !errors.Is(err, parser.ErrResourceNotFound) {
		t.Errorf("Expected ErrResourceNotFound, got %v", err)
	}
}

func TestParser_ParseDeposit_UnknownDestinationDomain(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	_, err := p.ParseDeposit(context.Background(), parser.Log{
		Raw: &DepositEvent{
			DestDomainID: 99,
			ResourceID:   types.Bytes32(common.HexToHash(fungibleResourceID)),
			DepositNonce: 14,
			Sender:       mustAccountID(t, alicePubKey),
		},
	})
	if !errors.Is(err, parser.ErrDomainNotFound) {
		t.Errorf("Expected ErrDomainNotFound, got %v", err)
	}
}

func TestParser_ParseProposalExecution(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	exec, err := p.ParseProposalExecution(parser.Log{
		BlockNumber: 4000100,
		TxHash:      "4000100-1",
		Raw: &ProposalExecutionEvent{
			OriginDomainID: 1,
			DepositNonce:   12,
		},
	})
	if err != nil {
		t.Fatalf("ParseProposalExecution failed: %v", err)
	}
	if exec.TransferID != "12-1-3" {
		t.Errorf("Expected transfer id 12-1-3, got %s", exec.TransferID)
	}
	if exec.TxHash != "4000100-1" {
		t.Errorf("Expected tx identifier 4000100-1, got %s", exec.TxHash)
	}
}

func TestParser_ParseFailedHandlerExecution(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	failed, err := p.ParseFailedHandlerExecution(parser.Log{
		TxHash: "4000200-4",
		Raw: &FailedHandlerExecutionEvent{
			Error:          append([]byte("InsufficientBalance"), 0x00, 0x00),
			OriginDomainID: 1,
			DepositNonce:   15,
		},
	})
	if err != nil {
		t.Fatalf("ParseFailedHandlerExecution failed: %v", err)
	}
	if failed.TransferID != "15-1-3" {
		t.Errorf("Expected transfer id 15-1-3, got %s", failed.TransferID)
	}
	if failed.Message != "InsufficientBalance" {
		t.Errorf("Expected InsufficientBalance, got %q", failed.Message)
	}
}

func TestParser_ParseFeeCollected(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	fee, err := p.ParseFeeCollected(parser.Log{
		TxHash: "4000000-2",
		Raw: &FeeCollectedEvent{
			FeePayer:     mustAccountID(t, alicePubKey),
			DestDomainID: 1,
			ResourceID:   types.Bytes32(common.HexToHash(fungibleResourceID)),
			FeeAmount:    types.NewU128(*big.NewInt(50000000000)),
		},
	})
	if err != nil {
		t.Fatalf("ParseFeeCollected failed: %v", err)
	}
	if fee.Amount != "50000000000" {
		t.Errorf("Expected amount 50000000000, got %s", fee.Amount)
	}
	if fee.TokenSymbol != "PHA" || fee.Decimals != 12 {
		t.Errorf("Expected PHA/12, got %s/%d", fee.TokenSymbol, fee.Decimals)
	}
	if fee.TxIdentifier != "4000000-2" {
		t.Errorf("Expected tx identifier 4000000-2, got %s", fee.TxIdentifier)
	}
}

func TestParser_ParseDestination(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	address, err := p.ParseDestination(multiLocationX1AccountID32(alicePubKey))
	if err != nil {
		t.Fatalf("ParseDestination failed: %v", err)
	}
	if address != aliceAddress {
		t.Errorf("Expected %s, got %s", aliceAddress, address)
	}
}

func TestParser_ParseDestination_UnresolvableShapes(t *testing.T) {
	shared := substrateSharedConfig()
	p := newTestParser(t, shared, testResourceStore())

	// Interior Here carries no account.
	address, err := p.ParseDestination([]byte{0x00, 0x00})
	if err != nil {
		t.Fatalf("ParseDestination failed: %v", err)
	}
	if address != "" {
		t.Errorf("Expected empty destination for Here interior, got %s", address)
	}

	// Unsupported junction arity fails the decode.
	if _, err := p.ParseDestination([]byte{0x00, 0x05}); err == nil {
		t.Error("Expected error for unsupported junctions arity")
	}

	if _, err := p.ParseDestination(nil); err == nil {
		t.Error("Expected error for empty payload")
	}
}
