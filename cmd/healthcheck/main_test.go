package main

import "testing"

func TestHealthURL(t *testing.T) {
	tests := []struct {
		addr, port, want string
	}{
		{"", "", "http://localhost:3000/healthz"},
		{"", "8081", "http://localhost:8081/healthz"},
		{":9000", "8081", "http://localhost:9000/healthz"},
		{"127.0.0.1:7000", "", "http://127.0.0.1:7000/healthz"},
	}
	for _, tt := range tests {
		t.Setenv("HTTP_ADDR", tt.addr)
		t.Setenv("API_PORT", tt.port)
		if got := healthURL(); got != tt.want {
			t.Errorf("healthURL(addr=%q, port=%q) = %q, want %q", tt.addr, tt.port, got, tt.want)
		}
	}
}
