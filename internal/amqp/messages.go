package amqp

import (
	"encoding/json"
	"time"

	"tallybook/internal/core"
)

// ExportMessage is the lightweight notification that a transaction
// needs to be appended to the external ledger. It carries only the id
// and kind; the worker fetches the full record from the database so it
// always exports the latest state.
type ExportMessage struct {
	ID        int64     `json:"id"`
	Kind      core.Kind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExportMessage(id int64, kind core.Kind) *ExportMessage {
	return &ExportMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

func (m *ExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExportMessageFromJSON(data []byte) (*ExportMessage, error) {
	var msg ExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
