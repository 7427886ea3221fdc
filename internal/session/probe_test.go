package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogTailProbe(t *testing.T) {
	tests := []struct {
		name    string
		log     string
		max     int64
		want    string
		wantErr error
	}{
		{
			name: "latest url wins",
			log:  "starting\nURL: https://a.example/one\nclick\ncurrent_url=https://a.example/two\nidle\n",
			want: "https://a.example/two",
		},
		{
			name:    "no url yet",
			log:     "starting\nwaiting for driver\n",
			wantErr: ErrNoURL,
		},
		{
			name:    "url outside tail window",
			log:     "URL: https://old.example\n" + strings.Repeat("x", 200) + "\n",
			max:     100,
			wantErr: ErrNoURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "capture_stdout.log")
			if err := os.WriteFile(path, []byte(tt.log), 0o644); err != nil {
				t.Fatal(err)
			}
			p := &LogTailProbe{Path: path, MaxBytes: tt.max}
			got, err := p.CurrentURL(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CurrentURL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CurrentURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CurrentURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLogTailProbeMissingLog(t *testing.T) {
	p := &LogTailProbe{Path: filepath.Join(t.TempDir(), "missing.log")}
	if _, err := p.CurrentURL(context.Background()); err == nil {
		t.Fatal("CurrentURL() should fail without a log")
	}
}
