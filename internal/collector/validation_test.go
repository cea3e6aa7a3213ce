package collector

import (
	"errors"
	"testing"
)

// test scrape request validation
func TestScrapeRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		req         ScrapeRequest
		wantErr     error
		wantChannel string
	}{
		{
			name:    "empty request - requires channel",
			req:     ScrapeRequest{},
			wantErr: ErrChannelRequired,
		},
		{
			name:        "channel with @",
			req:         ScrapeRequest{Channel: "@golang_jobs"},
			wantChannel: "golang_jobs",
		},
		{
			name:        "channel without @",
			req:         ScrapeRequest{Channel: "golang_jobs"},
			wantChannel: "golang_jobs",
		},
		{
			name:        "message url",
			req:         ScrapeRequest{Channel: "https://t.me/s/golang_jobs/1244"},
			wantChannel: "golang_jobs",
		},
		{
			name:    "handle with spaces",
			req:     ScrapeRequest{Channel: "not a channel"},
			wantErr: ErrInvalidChannel,
		},
		{
			name:    "too short",
			req:     ScrapeRequest{Channel: "@ab"},
			wantErr: ErrInvalidChannel,
		},
		{
			name:        "valid with limit",
			req:         ScrapeRequest{Channel: "@test", Limit: 100},
			wantChannel: "test",
		},
		{
			name:    "negative limit",
			req:     ScrapeRequest{Channel: "@test", Limit: -1},
			wantErr: ErrInvalidLimit,
		},
		{
			name:        "valid date format",
			req:         ScrapeRequest{Channel: "@test", Until: "2024-01-15"},
			wantChannel: "test",
		},
		{
			name:    "invalid date format",
			req:     ScrapeRequest{Channel: "@test", Until: "not-a-date"},
			wantErr: ErrInvalidDate,
		},
		{
			name:    "invalid date format - wrong order",
			req:     ScrapeRequest{Channel: "@test", Until: "15-01-2024"},
			wantErr: ErrInvalidDate,
		},
		{
			name:    "future date",
			req:     ScrapeRequest{Channel: "@test", Until: "2099-12-31"},
			wantErr: ErrFutureDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				if tt.req.Channel != tt.wantChannel {
					t.Errorf("Validate() channel = %q, want %q", tt.req.Channel, tt.wantChannel)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// test until date parsing
func TestScrapeRequest_UntilTime(t *testing.T) {
	tests := []struct {
		name     string
		until    string
		wantNil  bool
		wantYear int
	}{
		{
			name:    "empty until",
			until:   "",
			wantNil: true,
		},
		{
			name:     "valid date",
			until:    "2024-06-15",
			wantYear: 2024,
		},
		{
			name:    "garbage",
			until:   "soon",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ScrapeRequest{Channel: "@test", Until: tt.until}
			result := req.UntilTime()
			if tt.wantNil {
				if result != nil {
					t.Error("UntilTime() should return nil")
				}
				return
			}
			if result == nil {
				t.Fatal("UntilTime() should not return nil")
			}
			if result.Year() != tt.wantYear {
				t.Errorf("UntilTime().Year() = %d, want %d", result.Year(), tt.wantYear)
			}
		})
	}
}

func TestParseQuery(t *testing.T) {
	req, err := ParseQuery("@test", "25", "2024-01-15")
	if err != nil {
		t.Fatalf("ParseQuery() unexpected error: %v", err)
	}
	opts := req.Options()
	if opts.Channel != "test" || opts.Limit != 25 || opts.Until == nil {
		t.Errorf("Options() = %+v", opts)
	}

	if _, err := ParseQuery("@test", "many", ""); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("ParseQuery() error = %v, want ErrInvalidLimit", err)
	}
}
