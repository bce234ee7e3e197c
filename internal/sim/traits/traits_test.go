package traits

import "testing"

func TestSatisfies(t *testing.T) {
	g := Of(Smart, Deft, Hauler)
	cases := []struct {
		req, forb Set
		want      bool
	}{
		{Set{}, Set{}, true},
		{Of(Smart), Set{}, true},
		{Of(Smart, Fighter), Set{}, false},
		{Set{}, Of(Clumsy), true},
		{Set{}, Of(Deft), false},
		{Of(Hauler), Of(Clumsy, Frail), true},
	}
	for i, tc := range cases {
		if got := g.Satisfies(tc.req, tc.forb); got != tc.want {
			t.Fatalf("case %d: got=%v want=%v", i, got, tc.want)
		}
	}
}

func TestParseNormalizes(t *testing.T) {
	s := Parse([]string{" smart", "DEFT", ""})
	if len(s) != 2 || !s.Has(Smart) || !s.Has(Deft) {
		t.Fatalf("parse=%v", s.Sorted())
	}
}
