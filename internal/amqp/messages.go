package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"fintrack/internal/services"
)

// MessageVersion is bumped whenever LedgerEventMessage changes shape.
const MessageVersion = 1

// LedgerEventMessage is the wire form of a committed ledger mutation. It
// carries ids only; consumers reload the ledger from storage.
type LedgerEventMessage struct {
	Version       int       `json:"version"`
	Operation     string    `json:"operation"`
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(ev services.Event) *LedgerEventMessage {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &LedgerEventMessage{
		Version:       MessageVersion,
		Operation:     string(ev.Operation),
		TransactionID: ev.TransactionID,
		OwnerID:       ev.OwnerID,
		Timestamp:     ts,
	}
}

// Event converts the message back into a ledger event.
func (m *LedgerEventMessage) Event() services.Event {
	return services.Event{
		Operation:     services.Operation(m.Operation),
		TransactionID: m.TransactionID,
		OwnerID:       m.OwnerID,
		Timestamp:     m.Timestamp,
	}
}

func (m *LedgerEventMessage) Validate() error {
	if m.OwnerID == "" {
		return errors.New("missing owner_id")
	}
	switch services.Operation(m.Operation) {
	case services.OpCreated, services.OpUpdated, services.OpDeleted:
	default:
		return errors.New("unknown operation " + m.Operation)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and validates a message body.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
