package ws

import (
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	original := &MessageSubscribe{Category: "system"}

	raw, err := Serialize(original)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	decoded, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	subscribe, ok := decoded.(*MessageSubscribe)
	if !ok {
		t.Fatalf("decoded to %T, want *MessageSubscribe", decoded)
	}
	if subscribe.Category != "system" {
		t.Errorf("category = %q, want system", subscribe.Category)
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	if _, err := Deserialize([]byte(`{"type":"launch_missiles","payload":{}}`)); err == nil {
		t.Error("unknown event type must be rejected")
	}
}

func TestDeserializeMalformedJSON(t *testing.T) {
	if _, err := Deserialize([]byte(`{"type":`)); err == nil {
		t.Error("malformed JSON must be rejected")
	}
}

func TestTypeRegistryCoversInboundEvents(t *testing.T) {
	registry := GetTypeRegistry()
	for _, eventType := range []string{
		"subscribe_category",
		"unsubscribe_category",
		"request_notification_history",
		"mark_read",
		"ping",
		"pong",
	} {
		if _, ok := registry[eventType]; !ok {
			t.Errorf("event type %q is not registered", eventType)
		}
	}
}
