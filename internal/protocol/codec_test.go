package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		decoded interface{}
	}{
		{
			name:    "string payload",
			in:      &AuthRequest{Token: "eyJhbGciOiJIUzI1NiJ9.e30.sig"},
			decoded: &AuthRequest{},
		},
		{
			name:    "empty payload",
			in:      &MatchCancelRequest{},
			decoded: &MatchCancelRequest{},
		},
		{
			name:    "mixed fixed-width fields",
			in:      &SpawnUnitResponse{AssetID: 2001, UnitID: 17, ToTop: true},
			decoded: &SpawnUnitResponse{},
		},
		{
			name:    "slice of uint64",
			in:      &UnitDeathNotification{UnitIDs: []uint64{3, 9, 27}},
			decoded: &UnitDeathNotification{},
		},
		{
			name: "slice of nested structs",
			in: &LocationSyncRequest{
				Timestamp: 1700000000123,
				Positions: []UnitPosition{
					{UnitID: 1, X: 10.25, Z: -3.5},
					{UnitID: 2, X: 0, Z: 99.875, Modified: true},
				},
			},
			decoded: &LocationSyncRequest{},
		},
		{
			name:    "string with multibyte runes",
			in:      &ErrorNotification{Code: CodeInvalidAssetID, Message: "유효하지 않은 에셋"},
			decoded: &ErrorNotification{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			if err := Unmarshal(data, tt.decoded); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if diff := cmp.Diff(tt.in, tt.decoded); diff != "" {
				t.Errorf("round trip mismatch:\n%s", diff)
			}
		})
	}
}

func TestUnmarshalRejectsMalformedPayloads(t *testing.T) {
	valid, err := Marshal(&AttackUnitRequest{UnitID: 5, TargetIDs: []uint64{6, 7}})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty buffer", data: nil},
		{name: "truncated fixed field", data: valid[:4]},
		{name: "truncated slice", data: valid[:len(valid)-3]},
		{name: "trailing bytes", data: append(append([]byte{}, valid...), 0xFF)},
		{name: "declared length exceeds buffer", data: []byte{0, 0, 0, 0, 0, 0, 0, 5, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out AttackUnitRequest
			if err := Unmarshal(tt.data, &out); err == nil {
				t.Errorf("Unmarshal() accepted malformed payload")
			}
		})
	}
}

func TestMarshalRejectsNonStructs(t *testing.T) {
	if _, err := Marshal(42); err == nil {
		t.Error("Marshal() accepted a non-struct value")
	}
	var out int
	if err := Unmarshal([]byte{0}, &out); err == nil {
		t.Error("Unmarshal() accepted a non-struct target")
	}
}
