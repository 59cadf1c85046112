package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventMatch is the outcome of scanning receipt logs for a registration event.
// It is either ParsedEvent or NoMatch.
type EventMatch interface {
	eventMatch()
}

// ParsedEvent carries the device id read from a DeviceRegistered log.
type ParsedEvent struct {
	DeviceID uint64
}

// NoMatch reports why no registration event was found.
type NoMatch struct {
	Reason string
}

func (ParsedEvent) eventMatch() {}
func (NoMatch) eventMatch()     {}

// ParseRegistration returns the device id from the first log emitted by
// contract whose topic0 equals topic. The id is the first indexed argument.
// Logs from other addresses, with other signatures or with an unreadable id
// are skipped.
func ParseRegistration(logs []*types.Log, contract common.Address, topic common.Hash) EventMatch {
	if len(logs) == 0 {
		return NoMatch{Reason: "receipt has no logs"}
	}
	malformed := false
	for _, l := range logs {
		if l == nil || l.Address != contract {
			continue
		}
		if len(l.Topics) == 0 || l.Topics[0] != topic {
			continue
		}
		if len(l.Topics) < 2 {
			malformed = true
			continue
		}
		id := l.Topics[1].Big()
		if !id.IsUint64() {
			malformed = true
			continue
		}
		return ParsedEvent{DeviceID: id.Uint64()}
	}
	if malformed {
		return NoMatch{Reason: "registration event has no readable device id"}
	}
	return NoMatch{Reason: "no registration event from contract"}
}
