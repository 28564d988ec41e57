package status

import "encoding/json"

// Envelope is one outbound message: the event name, the change hint and
// the rendered status document. Status is never mutated after creation.
type Envelope struct {
	Event   string          `json:"event"`
	Time    int64           `json:"time"`
	Changed ChangeSet       `json:"changed"`
	Status  json.RawMessage `json:"status"`
}

// Encode returns the wire form of e.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// AsSnapshot returns a copy of e relabelled as the snapshot marker, with
// every category flagged.
func (e Envelope) AsSnapshot(timeMillis int64) Envelope {
	return Envelope{
		Event:   EventHello,
		Time:    timeMillis,
		Changed: ChangedAll,
		Status:  e.Status,
	}
}
