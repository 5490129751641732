package genet

import "testing"

func TestSeq16Less(t *testing.T) {
	cases := []struct {
		a, b seq16
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{0xFFFF, 0, true},
		{0, 0xFFFF, false},
		{100, 100, false},
	}
	for _, c := range cases {
		if got := c.a.less(c.b); got != c.want {
			t.Errorf("seq16(%d).less(%d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSeq16PrecedesOrEqual(t *testing.T) {
	if !seq16(5).precedesOrEqual(5) {
		t.Error("a should precede-or-equal itself")
	}
	if !seq16(5).precedesOrEqual(6) {
		t.Error("5 should precede 6")
	}
	if seq16(6).precedesOrEqual(5) {
		t.Error("6 should not precede 5")
	}
}

func TestSeq16Window(t *testing.T) {
	if w := seq16(0).window(); w != 0 {
		t.Errorf("window(0) = %d, want 0", w)
	}
	if w := seq16(reliableWindowSize).window(); w != 1 {
		t.Errorf("window(%d) = %d, want 1", reliableWindowSize, w)
	}
}
