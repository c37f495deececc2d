package ws

import "encoding/json"

// Serialize wraps a message in the wire envelope.
func Serialize(msg Message) ([]byte, error) {
	payload, err := ToJson(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(SerializedMessage{
		Type:    msg.GetType(),
		Payload: payload,
	})
}

// Deserialize decodes an inbound frame into its registered message type.
// Unknown types and malformed payloads are both rejected.
func Deserialize(raw []byte) (Message, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, err
	}

	msg, err := CreateMessage(wrapper.Type, typeRegistry)
	if err != nil {
		return nil, err
	}
	if err := FromJson(wrapper.Payload, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
