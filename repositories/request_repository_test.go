package repositories

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPageCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 1, 15, 9, 30, 45, 123456789, time.UTC)
	id := primitive.NewObjectID()

	cursor := EncodePageCursor(createdAt, id)
	if cursor == "" {
		t.Fatal("cursor is empty")
	}

	gotTime, gotID, err := DecodePageCursor(cursor)
	if err != nil {
		t.Fatalf("DecodePageCursor returned error: %v", err)
	}
	if !gotTime.Equal(createdAt) {
		t.Errorf("decoded time = %v, want %v", gotTime, createdAt)
	}
	if gotID != id {
		t.Errorf("decoded id = %v, want %v", gotID, id)
	}
}

func TestDecodePageCursorRejectsGarbage(t *testing.T) {
	cases := []struct {
		name   string
		cursor string
	}{
		{"not base64", "%%%"},
		{"missing separator", "bm9zZXBhcmF0b3I="},               // "noseparator"
		{"bad timestamp", "bm90YXRpbWV8NjVhZg=="},               // "notatime|65af"
		{"bad object id", "MjAyNi0wMS0xNVQwOTozMDo0NVp8eHl6"},   // "2026-01-15T09:30:45Z|xyz"
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodePageCursor(tc.cursor); err == nil {
				t.Fatalf("expected an error for cursor %q", tc.cursor)
			}
		})
	}
}
