package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/events"
)

const feeRouterABIJSON = `[
	{"inputs":[
		{"internalType":"address","name":"sender","type":"address"},
		{"internalType":"uint8","name":"fromDomainID","type":"uint8"},
		{"internalType":"uint8","name":"destinationDomainID","type":"uint8"},
		{"internalType":"bytes32","name":"resourceID","type":"bytes32"},
		{"internalType":"bytes","name":"depositData","type":"bytes"},
		{"internalType":"bytes","name":"feeData","type":"bytes"}],
	 "name":"calculateFee","outputs":[
		{"internalType":"uint256","name":"fee","type":"uint256"},
		{"internalType":"address","name":"tokenAddress","type":"address"}],
	 "stateMutability":"view","type":"function"}
]`

const erc20ABIJSON = `[
	{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var (
	feeRouterABI abi.ABI
	erc20ABI     abi.ABI
)

func init() {
	var err error
	feeRouterABI, err = abi.JSON(strings.NewReader(feeRouterABIJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse fee router ABI: %v", err))
	}
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("failed to parse erc20 ABI: %v", err))
	}
}

// ContractCaller is the subset of the ethclient used for read-only contract
// calls, kept narrow so tests can substitute a canned responder.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FeeCalculator queries the domain's fee handler router for the fee charged
// on a deposit.
type FeeCalculator struct {
	client ContractCaller
	domain *config.Domain
	router common.Address
	logger *zap.Logger
}

// NewFeeCalculator creates a fee calculator backed by the domain's fee
// handler router contract.
func NewFeeCalculator(client ContractCaller, domain *config.Domain, logger *zap.Logger) *FeeCalculator {
	return &FeeCalculator{
		client: client,
		domain: domain,
		router: common.HexToAddress(domain.FeeRouter),
		logger: logger.With(zap.Uint8("domain_id", domain.ID)),
	}
}

// CalculateFee resolves the fee charged on a deposit by replaying the fee
// router's calculateFee view call. Fee resolution is never allowed to abort
// deposit indexing: on any failure a zero fee placeholder is recorded and the
// failure is logged.
func (f *FeeCalculator) CalculateFee(ctx context.Context, sender common.Address, destDomainID uint8, resourceID [32]byte, depositData []byte, transferID, txHash string) *events.Fee {
	fee := &events.Fee{
		ID:           transferID,
		Amount:       "0",
		TxIdentifier: txHash,
	}

	amount, token, err := f.callRouter(ctx, sender, destDomainID, resourceID, depositData)
	if err != nil {
		f.logger.Error("Failed to calculate deposit fee",
			zap.String("transfer_id", transferID),
			zap.Error(err))
		return fee
	}

	// The zero address marks fees paid in the chain's native currency.
	if token == (common.Address{}) {
		fee.Amount = amount.String()
		fee.TokenAddress = token.Hex()
		fee.TokenSymbol = f.domain.NativeTokenSymbol
		fee.Decimals = f.domain.NativeTokenDecimals
		return fee
	}

	symbol, decimals, err := f.tokenMetadata(ctx, token)
	if err != nil {
		f.logger.Warn("Failed to resolve fee token metadata",
			zap.String("token", token.Hex()),
			zap.Error(err))
		return fee
	}
	fee.Amount = amount.String()
	fee.TokenAddress = token.Hex()
	fee.TokenSymbol = symbol
	fee.Decimals = decimals
	return fee
}

func (f *FeeCalculator) callRouter(ctx context.Context, sender common.Address, destDomainID uint8, resourceID [32]byte, depositData []byte) (*big.Int, common.Address, error) {
	input, err := feeRouterABI.Pack("calculateFee", sender, f.domain.ID, destDomainID, resourceID, depositData, []byte{0x00})
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to pack calculateFee call: %w", err)
	}

	output, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &f.router, Data: input}, nil)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("calculateFee call failed: %w", err)
	}

	results, err := feeRouterABI.Unpack("calculateFee", output)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to unpack calculateFee result: %w", err)
	}
	if len(results) != 2 {
		return nil, common.Address{}, fmt.Errorf("calculateFee returned %d values, want 2", len(results))
	}
	amount, ok := results[0].(*big.Int)
	if !ok {
		return nil, common.Address{}, fmt.Errorf("unexpected fee amount type %T", results[0])
	}
	token, ok := results[1].(common.Address)
	if !ok {
		return nil, common.Address{}, fmt.Errorf("unexpected fee token type %T", results[1])
	}
	return amount, token, nil
}

func (f *FeeCalculator) tokenMetadata(ctx context.Context, token common.Address) (string, int, error) {
	symbolInput, err := erc20ABI.Pack("symbol")
	if err != nil {
		return "", 0, fmt.Errorf("failed to pack symbol call: %w", err)
	}
	symbolOutput, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolInput}, nil)
	if err != nil {
		return "", 0, fmt.Errorf("symbol call failed: %w", err)
	}
	symbolResults, err := erc20ABI.Unpack("symbol", symbolOutput)
	if err != nil || len(symbolResults) != 1 {
		return "", 0, fmt.Errorf("failed to unpack symbol result: %w", err)
	}
	symbol, _ := symbolResults[0].(string)

	decimalsInput, err := erc20ABI.Pack("decimals")
	if err != nil {
		return "", 0, fmt.Errorf("failed to pack decimals call: %w", err)
	}
	decimalsOutput, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsInput}, nil)
	if err != nil {
		return "", 0, fmt.Errorf("decimals call failed: %w", err)
	}
	decimalsResults, err := erc20ABI.Unpack("decimals", decimalsOutput)
	if err != nil || len(decimalsResults) != 1 {
		return "", 0, fmt.Errorf("failed to unpack decimals result: %w", err)
	}
	decimals, _ := decimalsResults[0].(uint8)

	return symbol, int(decimals), nil
}
