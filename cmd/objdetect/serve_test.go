package main

import (
	"errors"
	"testing"
	"time"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/config"
)

func TestNewServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()

	defaults := map[string]string{
		"addr":    config.DefaultServeAddress,
		"bucket":  config.DefaultBucket,
		"prefix":  config.DefaultKeyPrefix,
		"expires": "1h0m0s",
		"region":  config.DefaultRegion,
		"lambda":  "false",
	}
	for name, want := range defaults {
		t.Run("has "+name+" flag", func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Fatalf("expected %s flag", name)
			}
			if flag.DefValue != want {
				t.Errorf("expected default %q, got %q", want, flag.DefValue)
			}
		})
	}
}

func TestValidateServeFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bucket  string
		prefix  string
		expires time.Duration
		wantErr bool
	}{
		{"defaults", config.DefaultBucket, config.DefaultKeyPrefix, time.Hour, false},
		{"empty prefix", "b", "", time.Minute, false},
		{"missing bucket", "", "images/", time.Hour, true},
		{"absolute prefix", "b", "/images/", time.Hour, true},
		{"zero expiry", "b", "images/", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateServeFlags(tt.bucket, tt.prefix, tt.expires)
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("missing bucket is a sentinel", func(t *testing.T) {
		t.Parallel()
		if err := validateServeFlags("", "images/", time.Hour); !errors.Is(err, config.ErrMissingBucket) {
			t.Errorf("expected ErrMissingBucket, got %v", err)
		}
	})
}
