package substrate

import (
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
)

// MultiLocation is the XCM location structure used as the recipient encoding
// for deposits targeting Substrate domains. Only the junction shapes the
// bridge actually emits are decodable; anything else fails the decode and the
// caller degrades to an unresolved destination.
type MultiLocation struct {
	Parents  types.U8
	Interior Junctions
}

func (m *MultiLocation) Decode(decoder scale.Decoder) error {
	if err := decoder.Decode(&m.Parents); err != nil {
		return err
	}
	return decoder.Decode(&m.Interior)
}

// Junctions is the interior of a MultiLocation. Here and X1 are the shapes
// with a single resolvable account; higher arities are not decoded.
type Junctions struct {
	IsHere bool
	IsX1   bool
	X1     Junction
}

func (j *Junctions) Decode(decoder scale.Decoder) error {
	variant, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	switch variant {
	case 0:
		j.IsHere = true
		return nil
	case 1:
		j.IsX1 = true
		return decoder.Decode(&j.X1)
	default:
		return fmt.Errorf("unsupported junctions arity %d", variant)
	}
}

// Junction is one interior junction. AccountId32 carries the destination
// account for fungible transfers; Parachain and AccountKey20 are decoded so
// their presence is distinguishable from malformed payloads.
type Junction struct {
	IsParachain bool
	ParachainID types.UCompact

	IsAccountID32 bool
	AccountID32   [32]byte

	IsAccountKey20 bool
	AccountKey20   [20]byte

	Network NetworkID
}

func (j *Junction) Decode(decoder scale.Decoder) error {
	variant, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	switch variant {
	case 0:
		j.IsParachain = true
		return decoder.Decode(&j.ParachainID)
	case 1:
		j.IsAccountID32 = true
		if err := decoder.Decode(&j.Network); err != nil {
			return err
		}
		return decoder.Read(j.AccountID32[:])
	case 3:
		j.IsAccountKey20 = true
		if err := decoder.Decode(&j.Network); err != nil {
			return err
		}
		return decoder.Read(j.AccountKey20[:])
	default:
		return fmt.Errorf("unsupported junction variant %d", variant)
	}
}

// NetworkID is the XCM network discriminator attached to account junctions.
type NetworkID struct {
	IsAny      bool
	IsNamed    bool
	Named      types.Bytes
	IsPolkadot bool
	IsKusama   bool
}

func (n *NetworkID) Decode(decoder scale.Decoder) error {
	variant, err := decoder.ReadOneByte()
	if err != nil {
		return err
	}
	switch variant {
	case 0:
		n.IsAny = true
		return nil
	case 1:
		n.IsNamed = true
		return decoder.Decode(&n.Named)
	case 2:
		n.IsPolkadot = true
		return nil
	case 3:
		n.IsKusama = true
		return nil
	default:
		return fmt.Errorf("unsupported network variant %d", variant)
	}
}
