package amqp

import (
	"encoding/json"
	"time"
)

// TransactionSettledMessage notifies the archive worker that a transaction
// reached unanimous settlement. It carries only identifiers; the worker
// fetches the full settlement record from the database.
type TransactionSettledMessage struct {
	TransactionID string    `json:"transaction_id"`
	RegisterID    string    `json:"register_id"`
	SettleDate    time.Time `json:"settle_date"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionSettledMessage(transactionID, registerID string, settleDate time.Time) *TransactionSettledMessage {
	return &TransactionSettledMessage{
		TransactionID: transactionID,
		RegisterID:    registerID,
		SettleDate:    settleDate,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionSettledMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionSettledMessageFromJSON creates a message from JSON bytes
func TransactionSettledMessageFromJSON(data []byte) (*TransactionSettledMessage, error) {
	var msg TransactionSettledMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
