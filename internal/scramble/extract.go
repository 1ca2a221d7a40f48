package scramble

import (
	"regexp"
	"strings"
)

// contextRadius is the number of tokens kept on each side of the clue token
// when a scramble context is found. Bounding the window keeps the snippet sent
// to the remote decoder small and focused on the clue itself.
const contextRadius = 20

// clueWordRe matches the spoken clue words that announce a scramble:
// "scramble", "descrambled", "unscrambling" and friends, plus the literal
// word "keyword". Tokens are matched after surrounding punctuation is
// trimmed, so "scrambled," still counts.
var clueWordRe = regexp.MustCompile(`(?i)^(?:(?:de|un)?scrambl(?:e|ed|ing)|keyword)$`)

// spelledTokenRe matches a token shaped like letters spelled out on air and
// joined by hyphens, e.g. "S-O-I-E-R" or "t-n-t". Two letters are enough to
// flag a context; the resolver separately requires three or more.
var spelledTokenRe = regexp.MustCompile(`^[A-Za-z](?:-[A-Za-z])+$`)

// FindContext scans transcript for the first token that looks like a scramble
// clue and returns a snippet of up to contextRadius tokens on either side of
// it, rejoined with single spaces. When no clue is present it returns
// ("", false) — an absent clue is a normal outcome, not an error.
func FindContext(transcript string) (snippet string, found bool) {
	tokens := strings.Fields(transcript)
	for i, tok := range tokens {
		if !isClueToken(tok) {
			continue
		}
		lo := max(0, i-contextRadius)
		hi := min(len(tokens), i+contextRadius+1)
		return strings.Join(tokens[lo:hi], " "), true
	}
	return "", false
}

// isClueToken reports whether a single whitespace-delimited token announces a
// scramble, either as a clue word or as a spelled-out letter sequence.
func isClueToken(tok string) bool {
	trimmed := strings.Trim(tok, `.,;:!?"'()[]`)
	if trimmed == "" {
		return false
	}
	if clueWordRe.MatchString(trimmed) {
		return true
	}
	return spelledTokenRe.MatchString(trimmed)
}
