package scramble

import "testing"

func TestExtractHyphenLetters(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantOK  bool
	}{
		{"A-B", "", false},
		{"A-B-C", "ABC", true},
		{"the word is S-O-I-E-R today", "SOIER", true},
		{"spaced out T N T boom", "TNT", true},
		{"lowercase r-o-s-i-e works too", "ROSIE", true},
		{"no letters here at all", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractHyphenLetters(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ExtractHyphenLetters(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractHyphenLetters(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLocalDecode_AnagramInsensitive(t *testing.T) {
	// Both orderings carry the same letter multiset as ROSIE.
	for _, in := range []string{"EIRSO", "ROSIE", "rosie", "SIEOR"} {
		if got := LocalDecode(in); got != "ROSIE" {
			t.Errorf("LocalDecode(%q) = %q, want ROSIE", in, got)
		}
	}
}

func TestLocalDecode_NoMatch(t *testing.T) {
	for _, in := range []string{"QQQQQ", "XYZZY", ""} {
		if got := LocalDecode(in); got != Unknown {
			t.Errorf("LocalDecode(%q) = %q, want %q", in, got, Unknown)
		}
	}
}

func TestLocalDecode_TNT(t *testing.T) {
	if got := LocalDecode("NTT"); got != "TNT" {
		t.Errorf("LocalDecode(NTT) = %q, want TNT", got)
	}
}

func TestNearestCandidate(t *testing.T) {
	word, distance := NearestCandidate("ROSIX")
	if word != "ROSIE" {
		t.Errorf("word = %q, want ROSIE", word)
	}
	if distance != 1 {
		t.Errorf("distance = %d, want 1", distance)
	}
}
