package repository

import (
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestDecodeExtValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "array", raw: `[{"id":"1","text":"Buy milk"}]`, want: `[{"id":"1","text":"Buy milk"}]`},
		{name: "empty array", raw: `[]`, want: `[]`},
		{name: "object", raw: `{"theme":"dark"}`, want: `{"theme":"dark"}`},
		{name: "string", raw: `"2024-03-01T10:00:00Z"`, want: `"2024-03-01T10:00:00Z"`},
		{name: "null", raw: `null`, want: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := decodeExtValue(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("decodeExtValue: %v", err)
			}
			out, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: value}}, false, false)
			if err != nil {
				t.Fatalf("MarshalExtJSON: %v", err)
			}
			var got struct {
				V json.RawMessage `json:"v"`
			}
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if string(got.V) != tt.want {
				t.Errorf("round trip = %s, want %s", got.V, tt.want)
			}
		})
	}
}

func TestDecodeExtValueRejectsMalformed(t *testing.T) {
	if _, err := decodeExtValue(json.RawMessage(`{"unterminated"`)); err == nil {
		t.Fatal("expected error")
	}
}
