package database

import (
	"testing"

	"github.com/oceanledger/bluecarbon/internal/config"
)

func TestPoolSettings(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		wantOpen int
		wantIdle int
	}{
		{"configured", config.DatabaseConfig{MaxOpenConns: 30, MaxIdleConns: 8}, 30, 8},
		{"zero values fall back", config.DatabaseConfig{}, 10, 5},
		{"negative values fall back", config.DatabaseConfig{MaxOpenConns: -1, MaxIdleConns: -1}, 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxOpen, maxIdle := poolSettings(tt.cfg)
			if maxOpen != tt.wantOpen || maxIdle != tt.wantIdle {
				t.Errorf("poolSettings() = (%d, %d), want (%d, %d)",
					maxOpen, maxIdle, tt.wantOpen, tt.wantIdle)
			}
		})
	}
}
