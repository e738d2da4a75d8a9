package raffle

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return TokenABI.Pack("approve", spender, amount)
}

// PackEnter encodes enterRaffleWithGuess(guess, raffleNumber).
func PackEnter(guess int64, raffleNumber *big.Int) ([]byte, error) {
	if guess <= 0 {
		return nil, fmt.Errorf("guess must be positive, got %d", guess)
	}
	return RaffleABI.Pack("enterRaffleWithGuess", big.NewInt(guess), raffleNumber)
}

// Reader performs the raffle's view calls.
type Reader struct {
	caller ethereum.ContractCaller
	raffle common.Address
}

func NewReader(caller ethereum.ContractCaller, raffle common.Address) *Reader {
	return &Reader{caller: caller, raffle: raffle}
}

func (r *Reader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := RaffleABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.raffle, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	vals, err := RaffleABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(vals))
	}
	return vals, nil
}

// PrizePool returns the pool of raffleNumber in the token's smallest unit.
func (r *Reader) PrizePool(ctx context.Context, raffleNumber *big.Int) (*big.Int, error) {
	vals, err := r.call(ctx, "getPrizePool", raffleNumber)
	if err != nil {
		return nil, err
	}
	return asBig(vals[0])
}

// EntryFee returns the fee of raffleNumber in the token's smallest unit.
func (r *Reader) EntryFee(ctx context.Context, raffleNumber *big.Int) (*big.Int, error) {
	vals, err := r.call(ctx, "getEntryFee", raffleNumber)
	if err != nil {
		return nil, err
	}
	return asBig(vals[0])
}

// IsOpen reports whether raffleNumber accepts entries.
func (r *Reader) IsOpen(ctx context.Context, raffleNumber *big.Int) (bool, error) {
	vals, err := r.call(ctx, "getIsRaffleOpen", raffleNumber)
	if err != nil {
		return false, err
	}
	open, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("getIsRaffleOpen: unexpected %T", vals[0])
	}
	return open, nil
}

// TokenAddress returns the fee token configured in the raffle contract.
func (r *Reader) TokenAddress(ctx context.Context) (common.Address, error) {
	vals, err := r.call(ctx, "getTokenAddress")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getTokenAddress: unexpected %T", vals[0])
	}
	return addr, nil
}

func asBig(v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %T, want *big.Int", v)
	}
	return n, nil
}

// Entered is a decoded RaffleEntered log.
type Entered struct {
	RaffleNumber *big.Int
	Entrant      common.Address
	Guess        *big.Int
	TxHash       common.Hash
	BlockNumber  uint64
}

// EnteredTopic is the RaffleEntered event signature hash.
var EnteredTopic = RaffleABI.Events["RaffleEntered"].ID

// ParseEntered decodes a RaffleEntered log.
func ParseEntered(l types.Log) (Entered, error) {
	if len(l.Topics) != 3 || l.Topics[0] != EnteredTopic {
		return Entered{}, errors.New("not a RaffleEntered log")
	}
	vals, err := RaffleABI.Unpack("RaffleEntered", l.Data)
	if err != nil {
		return Entered{}, fmt.Errorf("unpack RaffleEntered: %w", err)
	}
	guess, err := asBig(vals[0])
	if err != nil {
		return Entered{}, err
	}
	return Entered{
		RaffleNumber: new(big.Int).SetBytes(l.Topics[1].Bytes()),
		Entrant:      common.BytesToAddress(l.Topics[2].Bytes()),
		Guess:        guess,
		TxHash:       l.TxHash,
		BlockNumber:  l.BlockNumber,
	}, nil
}

// ExplainRevert names the raffle custom error carried by an RPC error, if any.
// It returns "" when err carries no recognizable revert data.
func ExplainRevert(err error) string {
	var de rpc.DataError
	if !errors.As(err, &de) {
		return ""
	}
	s, ok := de.ErrorData().(string)
	if !ok {
		return ""
	}
	data, derr := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if derr != nil {
		return ""
	}
	return ErrorName(data)
}

// ErrorName maps revert data to a raffle custom error name.
func ErrorName(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	for name, e := range RaffleABI.Errors {
		if bytes.Equal(e.ID.Bytes()[:4], data[:4]) {
			return name
		}
	}
	return ""
}
