package extraction

import "testing"

func TestAmountMatches(t *testing.T) {
	tests := []struct {
		name      string
		extracted int64
		claimed   int64
		want      bool
	}{
		{"exact match", 10000, 10000, true},
		{"within tolerance above", 10099, 10000, true},
		{"within tolerance below", 9901, 10000, true},
		{"at tolerance boundary", 10100, 10000, true},
		{"outside tolerance", 10250, 10000, false},
		{"far off", 5000, 10000, false},
		{"zero claimed exact", 0, 0, true},
		{"zero claimed mismatch", 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AmountMatches(tt.extracted, tt.claimed); got != tt.want {
				t.Errorf("AmountMatches(%d, %d) = %v, want %v", tt.extracted, tt.claimed, got, tt.want)
			}
		})
	}
}

func TestParseDecimalAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1250.00", 125000, false},
		{"1,250.00", 125000, false},
		{"1,250", 125000, false},
		{"  99.50 ", 9950, false},
		{"0.01", 1, false},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseDecimalAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDecimalAmount(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDecimalAmount(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDecimalAmount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost:8081", "http://localhost:8081"},
		{"http://localhost:8081/", "http://localhost:8081"},
		{"https://ocr.example.com", "https://ocr.example.com"},
	}

	for _, tt := range tests {
		if got := normalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
