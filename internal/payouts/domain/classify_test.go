package payouts

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		n, f, s, b int
		want       SettlementStatus
	}{
		{name: "all both approved", b: 4, want: StatusApproved},
		{name: "finance only", n: 1, f: 2, want: StatusAwaitingSuperAdmin},
		{name: "super only", n: 2, s: 1, want: StatusAwaitingFinance},
		{name: "mixed with both approved", f: 1, s: 1, b: 1, want: StatusInReview},
		{name: "both approved and finance only", f: 2, b: 1, want: StatusAwaitingSuperAdmin},
		{name: "finance and super without both", f: 1, s: 1, want: StatusPending},
		{name: "nothing approved", n: 3, want: StatusPending},
		{name: "some both approved rest unapproved", n: 2, b: 1, want: StatusPending},
		{name: "empty", want: StatusPending},
		{name: "negative counts", n: -1, b: 2, want: StatusApproved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.n, tc.f, tc.s, tc.b); got != tc.want {
				t.Fatalf("Classify(%d,%d,%d,%d) = %s, want %s", tc.n, tc.f, tc.s, tc.b, got, tc.want)
			}
		})
	}
}

func TestClassify_TotalOverSmallDomain(t *testing.T) {
	valid := map[SettlementStatus]bool{
		StatusApproved: true, StatusAwaitingSuperAdmin: true, StatusAwaitingFinance: true,
		StatusInReview: true, StatusPending: true,
	}
	for n := 0; n <= 3; n++ {
		for f := 0; f <= 3; f++ {
			for s := 0; s <= 3; s++ {
				for b := 0; b <= 3; b++ {
					if !valid[Classify(n, f, s, b)] {
						t.Fatalf("unexpected status for %d,%d,%d,%d", n, f, s, b)
					}
				}
			}
		}
	}
	for total := 1; total <= 10; total++ {
		if Classify(0, 0, 0, total) != StatusApproved {
			t.Fatalf("expected approved for total %d", total)
		}
	}
}

func TestNormalizeCommissionRate(t *testing.T) {
	cases := []struct {
		name string
		raw  *float64
		want float64
	}{
		{name: "percentage", raw: floatPtr(15), want: 0.15},
		{name: "fraction", raw: floatPtr(0.15), want: 0.15},
		{name: "nil", raw: nil, want: 0},
		{name: "negative", raw: floatPtr(-3), want: 0},
		{name: "nan", raw: floatPtr(math.NaN()), want: 0},
		{name: "inf", raw: floatPtr(math.Inf(1)), want: 0},
		{name: "exactly one", raw: floatPtr(1), want: 1},
		{name: "above hundred", raw: floatPtr(250), want: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCommissionRate(tc.raw); math.Abs(got-tc.want) > epsilon {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestPayoutCode(t *testing.T) {
	if got := PayoutCode("ab-12-cd-34-ef"); got != "PAY-AB12CD34" {
		t.Fatalf("got %s", got)
	}
	if got := PayoutCode("--"); got != "PAY-UNKNOWN" {
		t.Fatalf("got %s", got)
	}
	if got := PayoutCode("ééé-ñññ-ööö"); got != "PAY-ÉÉÉÑÑÑÖÖ" {
		t.Fatalf("got %s", got)
	}
	if got := PayoutCode("ab-é1"); got != "PAY-ABÉ1" {
		t.Fatalf("got %s", got)
	}
}
