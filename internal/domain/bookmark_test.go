package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		port     int
		wantIP   string
		wantPort int
		wantErr  bool
	}{
		{name: "plain", ip: "203.0.113.5", port: 7777, wantIP: "203.0.113.5", wantPort: 7777},
		{name: "trimmed", ip: "  play.example.org ", port: 7778, wantIP: "play.example.org", wantPort: 7778},
		{name: "default port", ip: "203.0.113.5", port: 0, wantIP: "203.0.113.5", wantPort: DefaultPort},
		{name: "empty", ip: "   ", port: 7777, wantErr: true},
		{name: "inner space", ip: "203.0 .113.5", port: 7777, wantErr: true},
		{name: "negative port", ip: "203.0.113.5", port: -1, wantErr: true},
		{name: "port too high", ip: "203.0.113.5", port: 65536, wantErr: true},
		{name: "max port", ip: "203.0.113.5", port: 65535, wantIP: "203.0.113.5", wantPort: 65535},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, port, err := NormalizeAddress(tt.ip, tt.port)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAddress) {
					t.Errorf("NormalizeAddress() error = %v, want ErrInvalidAddress", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeAddress() error = %v", err)
			}
			if ip != tt.wantIP || port != tt.wantPort {
				t.Errorf("NormalizeAddress() = %q, %d, want %q, %d", ip, port, tt.wantIP, tt.wantPort)
			}
		})
	}
}

func TestFullIP(t *testing.T) {
	if got := FullIP("203.0.113.5", 7777); got != "203.0.113.5:7777" {
		t.Errorf("FullIP() = %q", got)
	}
}

func TestPatchApplyAndClone(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &ServerBookmark{GuildID: 1, IP: "a", Port: 1, FullIP: "a:1", CreatedBy: 2, CreatedAt: created}

	edited := created.Add(time.Hour)
	BookmarkPatch{IP: "b", Port: 2, FullIP: "b:2", EditedAt: edited}.Apply(b)

	if b.IP != "b" || b.Port != 2 || b.FullIP != "b:2" {
		t.Errorf("Apply() = %+v", b)
	}
	if b.EditedAt == nil || !b.EditedAt.Equal(edited) {
		t.Errorf("Apply() EditedAt = %v, want %v", b.EditedAt, edited)
	}
	if !b.CreatedAt.Equal(created) || b.CreatedBy != 2 {
		t.Errorf("Apply() touched creation metadata: %+v", b)
	}

	c := b.Clone()
	*c.EditedAt = created
	if !b.EditedAt.Equal(edited) {
		t.Error("Clone() shares EditedAt with the original")
	}
}

func TestIsDenial(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrAlreadyExists, true},
		{fmt.Errorf("wrapped: %w", ErrNotFound), true},
		{ErrInvalidAddress, true},
		{ErrStorageUnavailable, false},
		{fmt.Errorf("%w: dial tcp: refused", ErrStorageUnavailable), false},
		{ErrUpstreamQueryFailed, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsDenial(tt.err); got != tt.want {
			t.Errorf("IsDenial(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
