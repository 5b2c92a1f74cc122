// Package events decodes raw trade-contract logs into typed events. Dispatch
// is by the first log topic, compared against the precomputed signature hash
// of every event the trade contract can emit.
package events

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/burnable-tech/DAIHard/internal/domain"
)

const tradeEventsJSON = `[
	{"type": "event", "name": "Opened", "inputs": [
		{"name": "fiatTransferMethods", "type": "string", "indexed": false},
		{"name": "commPubkey", "type": "string", "indexed": false}
	]},
	{"type": "event", "name": "Committed", "inputs": [
		{"name": "responder", "type": "address", "indexed": false},
		{"name": "commPubkey", "type": "string", "indexed": false}
	]},
	{"type": "event", "name": "Recalled", "inputs": []},
	{"type": "event", "name": "Claimed", "inputs": []},
	{"type": "event", "name": "Aborted", "inputs": []},
	{"type": "event", "name": "Released", "inputs": []},
	{"type": "event", "name": "Burned", "inputs": []},
	{"type": "event", "name": "Poke", "inputs": []},
	{"type": "event", "name": "InitiatorStatementLog", "inputs": [
		{"name": "encryptedForInitiator", "type": "string", "indexed": false},
		{"name": "encryptedForResponder", "type": "string", "indexed": false}
	]},
	{"type": "event", "name": "ResponderStatementLog", "inputs": [
		{"name": "encryptedForInitiator", "type": "string", "indexed": false},
		{"name": "encryptedForResponder", "type": "string", "indexed": false}
	]}
]`

var (
	tradeEvents abi.ABI
	byTopic     map[common.Hash]abi.Event
)

func init() {
	var err error
	tradeEvents, err = abi.JSON(strings.NewReader(tradeEventsJSON))
	if err != nil {
		panic("trade events abi parse: " + err.Error())
	}
	byTopic = make(map[common.Hash]abi.Event, len(tradeEvents.Events))
	for _, ev := range tradeEvents.Events {
		byTopic[ev.ID] = ev
	}
}

// Event is any decoded trade-contract event.
type Event interface {
	EventName() string
}

type Opened struct {
	FiatTransferMethods string
	CommPubkey          string
}

type Committed struct {
	Responder  common.Address
	CommPubkey string
}

type Recalled struct{}
type Claimed struct{}
type Aborted struct{}
type Released struct{}
type Burned struct{}
type Poke struct{}

// StatementLog carries a message encrypted once for each party.
type StatementLog struct {
	EncryptedForInitiator string
	EncryptedForResponder string
}

type InitiatorStatementLog struct{ StatementLog }
type ResponderStatementLog struct{ StatementLog }

func (Opened) EventName() string { return "Opened" }
func (Committed) EventName() string { return "Committed" }
func (Recalled) EventName() string { return "Recalled" }
func (Claimed) EventName() string { return "Claimed" }
func (Aborted) EventName() string { return "Aborted" }
func (Released) EventName() string { return "Released" }
func (Burned) EventName() string { return "Burned" }
func (Poke) EventName() string { return "Poke" }
func (InitiatorStatementLog) EventName() string { return "InitiatorStatementLog" }
func (ResponderStatementLog) EventName() string { return "ResponderStatementLog" }

// Topic returns the signature hash for the named event.
func Topic(name string) (common.Hash, bool) {
	ev, ok := tradeEvents.Events[name]
	if !ok {
		return common.Hash{}, false
	}
	return ev.ID, true
}

// MustTopic is Topic for names known at compile time.
func MustTopic(name string) common.Hash {
	h, ok := Topic(name)
	if !ok {
		panic("events: unknown event " + name)
	}
	return h
}

// Decode maps a raw log to its typed event. A log whose first topic matches
// no known event returns domain.ErrUnknownEvent.
func Decode(log types.Log) (Event, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("events: decode log %s: %w", log.TxHash.Hex(), domain.ErrNoTopics)
	}
	ev, ok := byTopic[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("events: topic %s: %w", log.Topics[0].Hex(), domain.ErrUnknownEvent)
	}

	switch ev.Name {
	case "Opened":
		var out Opened
		if err := tradeEvents.UnpackIntoInterface(&out, ev.Name, log.Data); err != nil {
			return nil, fmt.Errorf("events: unpack %s: %w", ev.Name, err)
		}
		return out, nil
	case "Committed":
		var out Committed
		if err := tradeEvents.UnpackIntoInterface(&out, ev.Name, log.Data); err != nil {
			return nil, fmt.Errorf("events: unpack %s: %w", ev.Name, err)
		}
		return out, nil
	case "InitiatorStatementLog", "ResponderStatementLog":
		var out StatementLog
		if err := tradeEvents.UnpackIntoInterface(&out, ev.Name, log.Data); err != nil {
			return nil, fmt.Errorf("events: unpack %s: %w", ev.Name, err)
		}
		if ev.Name == "InitiatorStatementLog" {
			return InitiatorStatementLog{out}, nil
		}
		return ResponderStatementLog{out}, nil
	case "Recalled":
		return Recalled{}, nil
	case "Claimed":
		return Claimed{}, nil
	case "Aborted":
		return Aborted{}, nil
	case "Released":
		return Released{}, nil
	case "Burned":
		return Burned{}, nil
	case "Poke":
		return Poke{}, nil
	}
	return nil, fmt.Errorf("events: %s: %w", ev.Name, domain.ErrUnknownEvent)
}

// DecodeFirst returns the first log in logs that decodes to T.
func DecodeFirst[T Event](logs []types.Log) (T, error) {
	var zero T
	var lastErr error
	for _, l := range logs {
		ev, err := Decode(l)
		if err != nil {
			lastErr = err
			continue
		}
		if typed, ok := ev.(T); ok {
			return typed, nil
		}
	}
	if lastErr != nil {
		return zero, lastErr
	}
	return zero, fmt.Errorf("events: no %s log among %d: %w", zero.EventName(), len(logs), domain.ErrNotFound)
}
