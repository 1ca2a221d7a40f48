package scramble

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Candidates is the fixed list of words the station is known to scramble.
// The on-air contest draws from AC/DC song and album vocabulary, so a small
// static list resolves the common cases with zero latency and no credential.
var Candidates = []string{
	"ROSIE",
	"TNT",
	"THUNDER",
	"THUNDERSTRUCK",
	"JAILBREAK",
	"HIGHWAY",
	"HELL",
	"HELLS",
	"BELLS",
	"BLACK",
	"BACK",
	"POWERAGE",
	"VOLTAGE",
	"RIFF",
	"ANGUS",
	"MALCOLM",
	"BON",
	"SCOTT",
	"BRIAN",
	"ROCKER",
	"SALUTE",
	"DYNAMITE",
	"GUNS",
	"FIRE",
	"SHOOK",
	"STIFF",
	"DIRTY",
	"DEEDS",
}

// spelledRunRe matches the first run of three or more single letters
// separated by hyphens or spaces, e.g. "S-O-I-E-R" or "T N T".
var spelledRunRe = regexp.MustCompile(`\b[A-Za-z](?:[ -][A-Za-z]){2,}\b`)

// ExtractHyphenLetters finds the first run of at least three single letters
// separated by hyphens or spaces in text, strips the separators, and returns
// the letters uppercased. ok is false when no such run exists.
func ExtractHyphenLetters(text string) (letters string, ok bool) {
	run := spelledRunRe.FindString(text)
	if run == "" {
		return "", false
	}
	var b strings.Builder
	for _, r := range run {
		if r != '-' && r != ' ' {
			b.WriteRune(r)
		}
	}
	if b.Len() < 3 {
		return "", false
	}
	return strings.ToUpper(b.String()), true
}

// LocalDecode resolves a spelled-out letter sequence against [Candidates] by
// sorted-letter-key equality, i.e. exact anagram matching. The comparison is
// case-insensitive and returns the first matching candidate uppercased, or
// the [Unknown] sentinel when no candidate shares the letter multiset.
func LocalDecode(letters string) string {
	key := sortKey(letters)
	if key == "" {
		return Unknown
	}
	for _, cand := range Candidates {
		if sortKey(cand) == key {
			return strings.ToUpper(cand)
		}
	}
	return Unknown
}

// NearestCandidate returns the candidate with the smallest Levenshtein
// distance from letters, along with that distance. It is a diagnostic hint
// only — callers log it when LocalDecode misses, they never persist it as a
// decoded value.
func NearestCandidate(letters string) (word string, distance int) {
	upper := strings.ToUpper(letters)
	best := -1
	for _, cand := range Candidates {
		d := matchr.Levenshtein(upper, cand)
		if best < 0 || d < best {
			best = d
			word = cand
		}
	}
	return word, best
}

// sortKey returns the uppercase characters of s in sorted order, which is
// identical for any two anagrams of the same word.
func sortKey(s string) string {
	chars := strings.Split(strings.ToUpper(s), "")
	sort.Strings(chars)
	return strings.Join(chars, "")
}
