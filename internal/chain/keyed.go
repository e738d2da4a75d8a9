package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the node API the key-backed wallet needs. *ethclient.Client
// satisfies it.
type Backend interface {
	ethereum.ContractCaller
	ReceiptReader
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Dialer opens a Backend for an RPC endpoint.
type Dialer func(ctx context.Context, rawurl string) (Backend, error)

// DialEthclient is the default Dialer.
func DialEthclient(ctx context.Context, rawurl string) (Backend, error) {
	c, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// KeyConnector connects a wallet backed by a local private key.
type KeyConnector struct {
	Key          *ecdsa.PrivateKey
	Endpoints    map[uint64]string // chain id -> RPC endpoint
	DefaultChain uint64
	PollInterval time.Duration
	Dial         Dialer
}

// NewKeyConnector parses a hex private key.
func NewKeyConnector(hexKey string, endpoints map[uint64]string, defaultChain uint64) (*KeyConnector, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	return &KeyConnector{Key: key, Endpoints: endpoints, DefaultChain: defaultChain}, nil
}

func (c *KeyConnector) Name() string { return "private-key" }

func (c *KeyConnector) Connect(ctx context.Context) (Provider, error) {
	w := &KeyedWallet{
		key:          c.Key,
		addr:         crypto.PubkeyToAddress(c.Key.PublicKey),
		endpoints:    c.Endpoints,
		dial:         c.Dial,
		pollInterval: c.PollInterval,
	}
	if w.dial == nil {
		w.dial = DialEthclient
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 2 * time.Second
	}
	if err := w.SwitchChain(ctx, c.DefaultChain); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return w, nil
}

// KeyedWallet signs EIP-1559 transactions with a local key. Switching chain
// re-dials the endpoint configured for the target chain.
type KeyedWallet struct {
	key          *ecdsa.PrivateKey
	addr         common.Address
	endpoints    map[uint64]string
	dial         Dialer
	pollInterval time.Duration

	mu      sync.Mutex
	backend Backend
	chainID uint64
}

func (w *KeyedWallet) Address() common.Address { return w.addr }

func (w *KeyedWallet) current() (Backend, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backend, w.chainID
}

// Backend exposes the node connection for read-only calls.
func (w *KeyedWallet) Backend() Backend {
	b, _ := w.current()
	return b
}

func (w *KeyedWallet) ChainID(ctx context.Context) (uint64, error) {
	b, _ := w.current()
	if b == nil {
		return 0, fmt.Errorf("wallet not connected")
	}
	id, err := b.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	return id.Uint64(), nil
}

func (w *KeyedWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	endpoint, ok := w.endpoints[chainID]
	if !ok || endpoint == "" {
		return fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}
	b, err := w.dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	got, err := b.ChainID(ctx)
	if err != nil {
		b.Close()
		return fmt.Errorf("chain id of %d endpoint: %w", chainID, err)
	}
	if got.Uint64() != chainID {
		b.Close()
		return fmt.Errorf("%w: endpoint for %d serves chain %d", ErrUnsupportedChain, chainID, got.Uint64())
	}

	w.mu.Lock()
	old := w.backend
	w.backend = b
	w.chainID = chainID
	w.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

func (w *KeyedWallet) SendTransaction(ctx context.Context, call Call) (common.Hash, error) {
	b, chainID := w.current()
	if b == nil {
		return common.Hash{}, fmt.Errorf("wallet not connected")
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := b.PendingNonceAt(ctx, w.addr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	tip, err := b.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas tip: %w", err)
	}
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	to := call.To
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{From: w.addr, To: &to, Value: value, Data: call.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	chain := new(big.Int).SetUint64(chainID)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      call.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chain), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: %w", err)
	}
	return signed.Hash(), nil
}

func (w *KeyedWallet) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b, _ := w.current()
	if b == nil {
		return nil, fmt.Errorf("wallet not connected")
	}
	return WaitMined(ctx, b, hash, w.pollInterval)
}

// Close releases the node connection.
func (w *KeyedWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.backend != nil {
		w.backend.Close()
		w.backend = nil
	}
}
