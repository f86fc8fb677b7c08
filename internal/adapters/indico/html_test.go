package indico

import "testing"

func TestStripHTML(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"", ""},
		{"  Brookhaven   National Laboratory ", "Brookhaven National Laboratory"},
		{"Texas A&amp;M University", "Texas A&M University"},
		{"<p>GSI</p><p>Darmstadt</p>", "GSI Darmstadt"},
		{"CERN<br>Geneva", "CERN Geneva"},
		{"<span>Wayne State <i>University</i></span>", "Wayne State University"},
		{"<script>alert(1)</script>Yale", "Yale"},
		{"AT&T Labs", "AT&T Labs"},
	}
	for _, tc := range tests {
		if got := StripHTML(tc.in); got != tc.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
