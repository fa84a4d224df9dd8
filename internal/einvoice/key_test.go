package einvoice

import (
	"reflect"
	"testing"
	"time"
)

const testKey = "AB12345678" + "1140103" + "1A2b"

func TestROCDateToTime(t *testing.T) {
	got, err := ROCDateToTime("1140103")
	if err != nil {
		t.Fatalf("ROCDateToTime(1140103) error: %v", err)
	}
	want := time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ROCDateToTime(1140103) = %v, want %v", got, want)
	}
}

func TestROCDateToTimeInvalid(t *testing.T) {
	cases := []string{
		"20260103", // 8 digits: Gregorian, not ROC
		"114013",   // 6 digits
		"",
		"114a103",
		"1141301", // month 13
		"1140230", // Feb 30
	}
	for _, input := range cases {
		if _, err := ROCDateToTime(input); err == nil {
			t.Errorf("ROCDateToTime(%q) expected error, got nil", input)
		}
	}
}

func TestTimeToROCDateRoundTrip(t *testing.T) {
	d := time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC)
	if got := TimeToROCDate(d); got != "1140103" {
		t.Errorf("TimeToROCDate = %q, want %q", got, "1140103")
	}
}

func TestFindKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string
		wantPos int
		wantOK  bool
	}{
		{"clean", testKey + ":rest", testKey, 0, true},
		{"bom prefix", "\uFEFF" + testKey, testKey, 0, true},
		{"leading junk", "xx" + testKey + ":1:2", testKey, 2, true},
		{"lowercase invoice letters", "ab123456781140103" + "1A2b", testKey, 0, true},
		{"too short", "AB12345678", "", 0, false},
		{"no key at all", "this payload has no invoice key in it at all", "", 0, false},
		{"digits where letters expected", "1212345678" + "1140103" + "1A2b", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, pos, ok := FindKey(tt.input)
			if ok != tt.wantOK || key != tt.wantKey || pos != tt.wantPos {
				t.Errorf("FindKey(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.input, key, pos, ok, tt.wantKey, tt.wantPos, tt.wantOK)
			}
		})
	}
}

func TestKeyFromPayload(t *testing.T) {
	if got := KeyFromPayload("  " + testKey + ":Milk:2:30"); got != testKey {
		t.Errorf("KeyFromPayload = %q, want %q", got, testKey)
	}
	if got := KeyFromPayload("**"); got != "" {
		t.Errorf("KeyFromPayload(**) = %q, want empty", got)
	}
}

func TestCleanPayload(t *testing.T) {
	in := "\uFEFF  AB\x00\x1f12  "
	if got := CleanPayload(in); got != "AB12" {
		t.Errorf("CleanPayload = %q, want %q", got, "AB12")
	}
}

func TestDedupeKeepOrder(t *testing.T) {
	in := []string{" b ", "a", "", "b", "a", "c"}
	want := []string{"b", "a", "c"}
	if got := DedupeKeepOrder(in); !reflect.DeepEqual(got, want) {
		t.Errorf("DedupeKeepOrder = %v, want %v", got, want)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey(testKey); got != "AB******78114*******b" {
		t.Errorf("MaskKey = %q, want %q", got, "AB******78114*******b")
	}
	if got := MaskKey("short"); got != "<invalid>" {
		t.Errorf("MaskKey(short) = %q, want <invalid>", got)
	}
}
