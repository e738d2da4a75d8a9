package raffle

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackApproveSelector(t *testing.T) {
	spender := common.HexToAddress("0x0C8020F0F4D4fb6fe708B0ED91cc3BAd00D419A8")
	data, err := PackApprove(spender, big.NewInt(1_000_000))
	require.NoError(t, err)
	// approve(address,uint256)
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, data[:4])
	assert.Len(t, data, 4+64)
	assert.Equal(t, spender, common.BytesToAddress(data[4:36]))
	assert.Equal(t, int64(1_000_000), new(big.Int).SetBytes(data[36:68]).Int64())
}

func TestPackEnterArguments(t *testing.T) {
	data, err := PackEnter(1740850200, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256([]byte("enterRaffleWithGuess(uint256,uint256)"))[:4], data[:4])
	assert.Equal(t, int64(1740850200), new(big.Int).SetBytes(data[4:36]).Int64())
	assert.Equal(t, int64(1), new(big.Int).SetBytes(data[36:68]).Int64())

	_, err = PackEnter(0, big.NewInt(1))
	assert.Error(t, err)
}

type fakeCaller struct {
	out  map[string][]byte
	seen []ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.seen = append(f.seen, msg)
	for name, m := range RaffleABI.Methods {
		if string(m.ID) == string(msg.Data[:4]) {
			return f.out[name], nil
		}
	}
	return nil, nil
}

func TestReaderViews(t *testing.T) {
	pool, err := RaffleABI.Methods["getPrizePool"].Outputs.Pack(big.NewInt(5_000_000))
	require.NoError(t, err)
	fee, err := RaffleABI.Methods["getEntryFee"].Outputs.Pack(big.NewInt(1_000_000))
	require.NoError(t, err)
	open, err := RaffleABI.Methods["getIsRaffleOpen"].Outputs.Pack(true)
	require.NoError(t, err)
	token := common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	tok, err := RaffleABI.Methods["getTokenAddress"].Outputs.Pack(token)
	require.NoError(t, err)

	raffleAddr := common.HexToAddress("0x0C8020F0F4D4fb6fe708B0ED91cc3BAd00D419A8")
	caller := &fakeCaller{out: map[string][]byte{
		"getPrizePool":    pool,
		"getEntryFee":     fee,
		"getIsRaffleOpen": open,
		"getTokenAddress": tok,
	}}
	r := NewReader(caller, raffleAddr)
	ctx := context.Background()

	p, err := r.PrizePool(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "5000000", p.String())

	f, err := r.EntryFee(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "1000000", f.String())

	ok, err := r.IsOpen(ctx, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.TokenAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	for _, msg := range caller.seen {
		assert.Equal(t, raffleAddr, *msg.To)
	}
}

func TestParseEntered(t *testing.T) {
	entrant := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data, err := RaffleABI.Events["RaffleEntered"].Inputs.NonIndexed().Pack(big.NewInt(1740850200))
	require.NoError(t, err)

	l := types.Log{
		Topics: []common.Hash{
			EnteredTopic,
			common.BigToHash(big.NewInt(1)),
			common.BytesToHash(entrant.Bytes()),
		},
		Data:        data,
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: 10,
	}
	ev, err := ParseEntered(l)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.RaffleNumber.Int64())
	assert.Equal(t, entrant, ev.Entrant)
	assert.Equal(t, int64(1740850200), ev.Guess.Int64())
	assert.Equal(t, uint64(10), ev.BlockNumber)

	_, err = ParseEntered(types.Log{Topics: []common.Hash{common.HexToHash("0x02")}})
	assert.Error(t, err)
}

type dataErr struct{ data string }

func (e dataErr) Error() string          { return "execution reverted" }
func (e dataErr) ErrorData() interface{} { return e.data }

func TestExplainRevert(t *testing.T) {
	sel := crypto.Keccak256([]byte("GuessAlreadyEntered()"))[:4]
	assert.Equal(t, "GuessAlreadyEntered", ErrorName(sel))
	assert.Equal(t, "GuessAlreadyEntered", ExplainRevert(dataErr{data: "0x" + common.Bytes2Hex(sel)}))
	assert.Equal(t, "", ExplainRevert(assert.AnError))
	assert.Equal(t, "", ErrorName([]byte{1, 2}))
}
