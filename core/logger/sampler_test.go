package logger

import "testing"

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	want := []bool{true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allow #%d = %v, want %v", i, got[i], want[i])
		}
	}

	s.Set(0, 0)
	for i := 0; i < 5; i++ {
		if !s.Allow() {
			t.Fatal("zero ratio must pass everything")
		}
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"1/50": {1, 50},
		" 2/5": {2, 5},
		"10":   {1, 10},
		"0":    {0, 0},
		"x/y":  {0, 0},
		"":     {0, 0},
	}
	for raw, want := range cases {
		num, den := parseRatio(raw)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatio(%q) = %d/%d, want %d/%d", raw, num, den, want[0], want[1])
		}
	}
}
