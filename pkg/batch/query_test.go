package batch

import (
	"errors"
	"testing"
)

func TestNewQuery_Range(t *testing.T) {
	seen := make(map[uint32]bool)
	for i := 0; i < 2000; i++ {
		q := newQuery()
		if q.Value < MinValue || q.Value > MaxValue {
			t.Fatalf("Query value %d outside [%d, %d]", q.Value, MinValue, MaxValue)
		}
		seen[q.Value] = true
	}

	// 2000 uniform draws over 11 values hit every value
	if len(seen) != int(MaxValue-MinValue+1) {
		t.Errorf("Expected every value in range to be drawn, got %v", seen)
	}
}

func TestEncodeQuery(t *testing.T) {
	if got := string(encodeQuery(Query{Value: 7})); got != `{"value":7}` {
		t.Errorf("Expected {\"value\":7}, got %s", got)
	}
}

func TestParseReply(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected uint32
		wantErr  bool
	}{
		{
			name:     "httpbin reply",
			body:     `{"args":{},"data":"{\"value\":4}","json":{"value":4},"url":"https://httpbin.org/post"}`,
			expected: 4,
		},
		{
			name:     "zero value",
			body:     `{"json":{"value":0}}`,
			expected: 0,
		},
		{name: "malformed json", body: `{"json":`, wantErr: true},
		{name: "not json", body: `<html>bad gateway</html>`, wantErr: true},
		{name: "missing json field", body: `{"data":"x"}`, wantErr: true},
		{name: "null json field", body: `{"json":null}`, wantErr: true},
		{name: "missing value", body: `{"json":{}}`, wantErr: true},
		{name: "string value", body: `{"json":{"value":"4"}}`, wantErr: true},
		{name: "negative value", body: `{"json":{"value":-1}}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			value, err := parseReply([]byte(tc.body))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got value %d", value)
				}
				if !errors.Is(err, ErrParse) {
					t.Errorf("Expected ErrParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseReply returned error: %v", err)
			}
			if value != tc.expected {
				t.Errorf("Expected value %d, got %d", tc.expected, value)
			}
		})
	}
}
