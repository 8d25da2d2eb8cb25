package importer

import (
	"slices"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2009-03-04", "2009-03-04", true},
		{"2009/03/04", "2009-03-04", true},
		{"3/4/2009", "2009-03-04", true},
		{"03-04-2009", "2009-03-04", true},
		{"Mar 4, 2009", "2009-03-04", true},
		{"March 4, 2009", "2009-03-04", true},
		{"4 Mar 2009", "2009-03-04", true},
		{"20090304", "2009-03-04", true},
		{"3/4/09", "2009-03-04", true},
		{"3/4/88", "1988-03-04", true},
		{"  2009-03-04  ", "2009-03-04", true},
		{"", "", false},
		{"not a date", "", false},
		{"2009-13-45", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got.Format(time.DateOnly) != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format(time.DateOnly), tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.32", 1.32, true},
		{"1.32s", 1.32, true},
		{"1.32 sec", 1.32, true},
		{"24.5 in", 24.5, true},
		{"24.5\"", 24.5, true},
		{"180 lbs", 180, true},
		{"1,234.5", 1234.5, true},
		{"-3", -3, true},
		{".5", 0.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFloat(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseFloat(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2009", 2009, true},
		{"2009.0", 2009, true},
		{"2009.5", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseInt(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "T", "yes", "Y", "on", "1"} {
		if v, ok := ParseBool(s); !ok || !v {
			t.Errorf("ParseBool(%q) = %v, %v; want true, true", s, v, ok)
		}
	}
	for _, s := range []string{"false", "F", "no", "N", "Off", "0"} {
		if v, ok := ParseBool(s); !ok || v {
			t.Errorf("ParseBool(%q) = %v, %v; want false, true", s, v, ok)
		}
	}
	if _, ok := ParseBool("maybe"); ok {
		t.Error("ParseBool(maybe) ok = true")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" Soccer, Track ; ; Basketball|")
	want := []string{"Soccer", "Track", "Basketball"}
	if !slices.Equal(got, want) {
		t.Errorf("SplitList() = %q, want %q", got, want)
	}
	if got := SplitList(""); len(got) != 0 {
		t.Errorf("SplitList(\"\") = %q, want empty", got)
	}
}

func TestLookupMetric(t *testing.T) {
	for _, name := range []string{"FLY10_TIME", "fly10 time", "Fly10-Time"} {
		m, ok := LookupMetric(name)
		if !ok || m.Name != "FLY10_TIME" {
			t.Errorf("LookupMetric(%q) = %v, %v", name, m.Name, ok)
		}
	}
	if _, ok := LookupMetric("BENCH_PRESS"); ok {
		t.Error("LookupMetric(BENCH_PRESS) ok = true")
	}

	m, _ := LookupMetric("VERTICAL_JUMP")
	if err := m.CheckRange(24); err != nil {
		t.Errorf("CheckRange(24) error = %v", err)
	}
	if err := m.CheckRange(80); err == nil {
		t.Error("CheckRange(80) error = nil, want out of range")
	}
}
