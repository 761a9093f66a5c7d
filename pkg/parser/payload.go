package parser

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/sygma-indexer/pkg/config"
	"github.com/chainsafe/sygma-indexer/pkg/events"
)

// ResolveDestination decodes the deposit payload's recipient and renders it as
// the destination domain's chain-native address string. Resolution is
// best-effort: payloads without a meaningful destination (generic transfers,
// malformed recipients) yield an empty string, never an error, because a
// resolvable destination is not required for the transfer to be recorded.
func (r *Registry) ResolveDestination(payload []byte, resourceType events.TransferType, destDomain *config.Domain, logger *zap.Logger) string {
	recipient, err := extractRecipient(payload, resourceType)
	if err != nil {
		logger.Error("Failed to extract deposit recipient",
			zap.String("resource_type", string(resourceType)),
			zap.Error(err))
		return ""
	}
	if recipient == nil {
		return ""
	}

	destParser, err := r.Parser(destDomain.ID)
	if err != nil {
		logger.Error("No destination parser for domain",
			zap.Uint8("domain_id", destDomain.ID),
			zap.Error(err))
		return ""
	}

	address, err := destParser.ParseDestination(recipient)
	if err != nil {
		logger.Warn("Failed to decode destination address",
			zap.Uint8("domain_id", destDomain.ID),
			zap.Error(err))
		return ""
	}
	return address
}

// extractRecipient slices the raw recipient bytes out of the deposit payload.
// The layout depends on the resource type:
//
//	fungible / nonFungible:     [0,32) amount or token id
//	                            [32,64) recipient length N
//	                            [64,64+N) recipient
//	permissionlessGeneric:      [0,32) max gas
//	                            [32,34) length L1 of the function signature
//	                            [34,34+L1) function signature
//	                            [34+L1,35+L1) length L2 of the execute contract address
//	                            [35+L1,35+L1+L2) execute contract address
//
// For generic calls the execute contract address is the destination. The
// remaining resource types carry no destination at this layer.
func extractRecipient(payload []byte, resourceType events.TransferType) ([]byte, error) {
	switch resourceType {
	case events.FungibleTransfer, events.NonFungibleTransfer:
		if len(payload) < 64 {
			return nil, fmt.Errorf("payload too short for recipient length: %d bytes", len(payload))
		}
		recipientLen := new(big.Int).SetBytes(payload[32:64])
		if !recipientLen.IsInt64() || 64+recipientLen.Int64() > int64(len(payload)) {
			return nil, fmt.Errorf("recipient length %s exceeds payload size %d", recipientLen, len(payload))
		}
		return payload[64 : 64+recipientLen.Int64()], nil

	case events.PermissionlessGenericTransfer:
		if len(payload) < 34 {
			return nil, fmt.Errorf("payload too short for signature length: %d bytes", len(payload))
		}
		sigLen := int(payload[32])<<8 | int(payload[33])
		addrLenOffset := 34 + sigLen
		if len(payload) < addrLenOffset+1 {
			return nil, fmt.Errorf("payload too short for address length: %d bytes", len(payload))
		}
		addrLen := int(payload[addrLenOffset])
		addrOffset := addrLenOffset + 1
		if len(payload) < addrOffset+addrLen {
			return nil, fmt.Errorf("payload too short for address: %d bytes", len(payload))
		}
		return payload[addrOffset : addrOffset+addrLen], nil

	default:
		// semiFungible and permissionedGeneric transfers define no
		// destination address at this layer.
		return nil, nil
	}
}

// DecodeAmount renders the payload's leading 32-byte scalar as a decimal
// string. Fungible amounts are scaled by the resource decimals using
// arbitrary-precision decimal arithmetic; non-fungible token ids are returned
// unscaled; the remaining resource types carry no scalar amount.
func DecodeAmount(payload []byte, decimals int, resourceType events.TransferType) (string, error) {
	switch resourceType {
	case events.FungibleTransfer:
		if len(payload) < 32 {
			return "", fmt.Errorf("payload too short for amount: %d bytes", len(payload))
		}
		amount := new(big.Int).SetBytes(payload[:32])
		return decimal.NewFromBigInt(amount, int32(-decimals)).String(), nil

	case events.NonFungibleTransfer:
		if len(payload) < 32 {
			return "", fmt.Errorf("payload too short for token id: %d bytes", len(payload))
		}
		return new(big.Int).SetBytes(payload[:32]).String(), nil

	case events.SemiFungibleTransfer, events.PermissionedGenericTransfer, events.PermissionlessGenericTransfer:
		return "", nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedResourceType, resourceType)
	}
}
