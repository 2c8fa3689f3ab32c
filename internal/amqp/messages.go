package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expensewizard/internal/sheets"
)

// ExpenseSyncMessage carries a full Document so the worker can mirror it
// without reading the primary store.
type ExpenseSyncMessage struct {
	MessageID string          `json:"messageId"`
	Document  sheets.Document `json:"document"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewExpenseSyncMessage(id string, doc sheets.Document) *ExpenseSyncMessage {
	return &ExpenseSyncMessage{
		MessageID: id,
		Document:  doc,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseSyncMessageFromJSON decodes a message and rejects ones without a record id.
func ExpenseSyncMessageFromJSON(data []byte) (*ExpenseSyncMessage, error) {
	var msg ExpenseSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Document.ID <= 0 {
		return nil, fmt.Errorf("message %q has no expense id", msg.MessageID)
	}
	return &msg, nil
}
