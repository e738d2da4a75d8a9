// Package raffle holds the on-chain surface consumed by the orchestrator:
// the ERC-20 approval, the raffle entry call and a few raffle views.
package raffle

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenABIJSON = `[
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

const raffleABIJSON = `[
  {"type":"function","name":"enterRaffleWithGuess","stateMutability":"nonpayable",
   "inputs":[{"name":"guess","type":"uint256"},{"name":"_raffleNumber","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getPrizePool","stateMutability":"view",
   "inputs":[{"name":"_raffleNumber","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getEntryFee","stateMutability":"view",
   "inputs":[{"name":"_raffleNumber","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getIsRaffleOpen","stateMutability":"view",
   "inputs":[{"name":"_raffleNumber","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getTokenAddress","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"event","name":"RaffleEntered","anonymous":false,
   "inputs":[{"name":"raffleNumber","type":"uint256","indexed":true},
             {"name":"entrant","type":"address","indexed":true},
             {"name":"guess","type":"uint256","indexed":false}]},
  {"type":"error","name":"AddressNotAuthorized","inputs":[]},
  {"type":"error","name":"EntryFeeTooLow","inputs":[]},
  {"type":"error","name":"GuessAlreadyEntered","inputs":[]},
  {"type":"error","name":"GuessTimestampTooHigh","inputs":[]},
  {"type":"error","name":"GuessTimestampTooLow","inputs":[]},
  {"type":"error","name":"RaffleDoesNotExist","inputs":[]},
  {"type":"error","name":"RaffleIsClosed","inputs":[]},
  {"type":"error","name":"PrizePoolIsZero","inputs":[]}
]`

var (
	// TokenABI is the ERC-20 subset used for the entry fee allowance.
	TokenABI = mustABI(tokenABIJSON)
	// RaffleABI is the raffle contract subset used by this module.
	RaffleABI = mustABI(raffleABIJSON)
)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("raffle: bad abi: " + err.Error())
	}
	return parsed
}
