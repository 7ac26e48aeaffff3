// ABOUTME: Tests for control message parsing and construction
// ABOUTME: Verifies wire field names and tag routing
package protocol

import (
	"encoding/json"
	"testing"
)

func TestAudioConfigWireFormat(t *testing.T) {
	cfg := NewAudioConfig(48000, 1)

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if fields["type"] != "audio_config" {
		t.Errorf("expected type audio_config, got %v", fields["type"])
	}
	if fields["sampleRate"] != float64(48000) {
		t.Errorf("expected sampleRate 48000, got %v", fields["sampleRate"])
	}
	if fields["channels"] != float64(1) {
		t.Errorf("expected channels 1, got %v", fields["channels"])
	}
	if fields["format"] != "float32" {
		t.Errorf("expected format float32, got %v", fields["format"])
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		expectErr bool
	}{
		{name: "ping", input: `{"type":"ping"}`, want: TypePing},
		{name: "client info", input: `{"type":"client_info","device_info":"Pixel 9"}`, want: TypeClientInfo},
		{name: "unknown tag passes through", input: `{"type":"zzz"}`, want: "zzz"},
		{name: "missing type", input: `{"device_info":"x"}`, expectErr: true},
		{name: "malformed json", input: `{"type":`, expectErr: true},
		{name: "empty", input: ``, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseType([]byte(tt.input))
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClientInfoRoundTrip(t *testing.T) {
	data := []byte(`{"type":"client_info","device_info":"Living Room Mac"}`)

	var info ClientInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if info.DeviceInfo != "Living Room Mac" {
		t.Errorf("expected device label, got %q", info.DeviceInfo)
	}
}
