package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract ABIs, read-only subset.
var (
	factoryABI abi.ABI
	tradeABI   abi.ABI
)

func init() {
	var err error

	factoryABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "getNumTrades",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "createdTrades",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "", "type": "uint256"}],
			"outputs": [
				{"name": "tradeAddress", "type": "address"},
				{"name": "blocknum", "type": "uint256"}
			]
		}
	]`))
	if err != nil {
		panic("factory abi parse: " + err.Error())
	}

	tradeABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "getParameters",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "initiator", "type": "address"},
				{"name": "initiatorIsBuyer", "type": "bool"},
				{"name": "daiAmount", "type": "uint256"},
				{"name": "totalPrice", "type": "string"},
				{"name": "buyerDeposit", "type": "uint256"},
				{"name": "autorecallInterval", "type": "uint256"},
				{"name": "autoabortInterval", "type": "uint256"},
				{"name": "autoreleaseInterval", "type": "uint256"},
				{"name": "pokeReward", "type": "uint256"}
			]
		},
		{
			"name": "getState",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "balance", "type": "uint256"},
				{"name": "phase", "type": "uint8"},
				{"name": "phaseStartTimestamp", "type": "uint256"},
				{"name": "responder", "type": "address"}
			]
		}
	]`))
	if err != nil {
		panic("trade abi parse: " + err.Error())
	}
}
