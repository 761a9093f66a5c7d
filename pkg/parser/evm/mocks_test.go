package evm

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
)

// MockContractCaller is a mock eth client for read-only contract calls
type MockContractCaller struct {
	CallContractFunc func(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func (m *MockContractCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.CallContractFunc != nil {
		return m.CallContractFunc(ctx, call, blockNumber)
	}
	return nil, nil
}
