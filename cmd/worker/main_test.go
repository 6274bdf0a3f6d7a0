package main

import "testing"

func TestResolvePort(t *testing.T) {
	tests := []struct {
		args     []string
		fallback int
		want     int
		wantErr  bool
	}{
		{[]string{"5001"}, 5000, 5001, false},
		{nil, 5000, 5000, false},
		{nil, 0, 0, true},
		{[]string{"http"}, 5000, 0, true},
		{[]string{"0"}, 5000, 0, true},
		{[]string{"65536"}, 5000, 0, true},
		{[]string{"5001", "5002"}, 5000, 0, true},
	}
	for _, tt := range tests {
		got, err := resolvePort(tt.args, tt.fallback)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("resolvePort(%q, %d) = %d, %v", tt.args, tt.fallback, got, err)
		}
	}
}
