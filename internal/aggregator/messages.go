package aggregator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

// Request is a fetch the aggregator wants executed. The runner performs it
// and feeds the matching Result back through Aggregator.Apply.
type Request interface{ request() }

type TotalCountRequest struct{}

type CreationInfoRequest struct {
	ID int
}

type ParametersRequest struct {
	ID      int
	Address common.Address
}

type StateRequest struct {
	ID      int
	Address common.Address
}

// OpenedRequest asks for the Opened logs of a trade, which carry its payment
// methods and the initiator's comm pubkey.
type OpenedRequest struct {
	ID        int
	Address   common.Address
	FromBlock uint64
}

// CommittedRequest asks for the Committed logs of a trade, which carry the
// responder's comm pubkey.
type CommittedRequest struct {
	ID        int
	Address   common.Address
	FromBlock uint64
}

func (TotalCountRequest) request() {}
func (CreationInfoRequest) request() {}
func (ParametersRequest) request() {}
func (StateRequest) request() {}
func (OpenedRequest) request() {}
func (CommittedRequest) request() {}

// Result is the outcome of a Request. A non-nil Err means the fetch failed.
type Result interface{ result() }

type TotalCountResult struct {
	Count *big.Int
	Err   error
}

type CreationInfoResult struct {
	ID   int
	Info domain.CreationInfo
	Err  error
}

type ParametersResult struct {
	ID         int
	Parameters domain.Parameters
	Err        error
}

type StateResult struct {
	ID    int
	State domain.State
	Err   error
}

type OpenedResult struct {
	ID   int
	Logs []types.Log
	Err  error
}

type CommittedResult struct {
	ID   int
	Logs []types.Log
	Err  error
}

func (TotalCountResult) result() {}
func (CreationInfoResult) result() {}
func (ParametersResult) result() {}
func (StateResult) result() {}
func (OpenedResult) result() {}
func (CommittedResult) result() {}
