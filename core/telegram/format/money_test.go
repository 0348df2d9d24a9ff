package format

import "testing"

func TestMoney(t *testing.T) {
	cases := map[int64]string{
		0:       "0 sum",
		900:     "900 sum",
		25000:   "25 000 sum",
		1250000: "1 250 000 sum",
		-25000:  "-25 000 sum",
	}
	for in, want := range cases {
		if got := Money(in); got != want {
			t.Fatalf("Money(%d) = %q, want %q", in, got, want)
		}
	}
}
