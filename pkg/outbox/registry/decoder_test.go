package registry

import (
	"encoding/json"
	"testing"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventShipmentStatusChanged, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"to_status":"in_transit"}`)
	output, err := reg.Decode(enums.EventShipmentStatusChanged, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["to_status"] != "in_transit" {
		t.Fatalf("unexpected output %+v", output)
	}
}
