package amqp

import (
	"encoding/json"
	"time"
)

// ExpenseStoredMessage announces a newly persisted expense. It carries only
// the ID; consumers fetch the full row from the database.
type ExpenseStoredMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseStoredMessage(id int64) *ExpenseStoredMessage {
	return &ExpenseStoredMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseStoredMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseStoredMessageFromJSON creates a message from JSON bytes
func ExpenseStoredMessageFromJSON(data []byte) (*ExpenseStoredMessage, error) {
	var msg ExpenseStoredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
