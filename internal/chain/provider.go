// Package chain abstracts the connected wallet: current chain, chain switch,
// transaction broadcast and receipt waiting.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrUserRejected is returned when the wallet declines to sign or switch.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrUnsupportedChain is returned when the wallet cannot reach the requested chain.
	ErrUnsupportedChain = errors.New("chain not supported by wallet")
	// ErrNoConnector is returned when no wallet connector is available.
	ErrNoConnector = errors.New("no wallet connector available")
)

// Call is a contract call the wallet signs and broadcasts.
type Call struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Provider is a connected wallet session.
type Provider interface {
	Address() common.Address
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	SendTransaction(ctx context.Context, call Call) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Connector opens a wallet session.
type Connector interface {
	Name() string
	Connect(ctx context.Context) (Provider, error)
}

// SelectConnector returns the connector called name, or the first one when
// name is empty.
func SelectConnector(connectors []Connector, name string) (Connector, error) {
	if len(connectors) == 0 {
		return nil, ErrNoConnector
	}
	if name == "" {
		return connectors[0], nil
	}
	for _, c := range connectors {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, ErrNoConnector
}
