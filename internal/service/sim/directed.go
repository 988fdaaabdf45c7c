package sim

import (
	"regexp"
)

// userDirectedPatterns enumerate phrasings that address the human reader
// directly. A generated reply matching one of these should not receive an
// automatic follow-up: a persona would be pretending to answer a question
// posed to the human.
var userDirectedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat do you think\b`),
	regexp.MustCompile(`(?i)\bwhat(?:'s| is) your (?:take|opinion|view|experience)\b`),
	regexp.MustCompile(`(?i)\bdo you (?:agree|think|believe|feel|reckon)\b`),
	regexp.MustCompile(`(?i)\bwhat about you\b`),
	regexp.MustCompile(`(?i)\byour thoughts\b`),
	regexp.MustCompile(`(?i)\bhave you (?:ever|tried|seen|considered)\b`),
	regexp.MustCompile(`(?i)\bwould you\b[^?]*\?`),
	regexp.MustCompile(`(?i)\bcan you\b[^?]*\?`),
	regexp.MustCompile(`(?i)@you\b`),
	regexp.MustCompile(`(?i)\bu/you\b`),
}

// AddressesUser reports whether the text is directed at the human user
// rather than at the thread in general.
func AddressesUser(text string) bool {
	for _, p := range userDirectedPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
