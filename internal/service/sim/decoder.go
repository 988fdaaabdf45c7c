package sim

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Free-text model output is unreliable as a structured signal, so the
// selection decoder applies an explicit ordered list of parse
// strategies and reports which one succeeded. The fallback policy on
// decode failure lives in the selector, not here.

var (
	selectedLineRe = regexp.MustCompile(`^Selected(?: Persona)?:\s*(\d+)`)
	digitsOnlyRe   = regexp.MustCompile(`^\d+$`)

	analysisLinePrefix = "Conversation Analysis:"
	speakerLinePrefix  = "Previous Speaker:"
)

// parseStrategy extracts a 1-based selection number from the response
// lines, reporting ok=false when the strategy does not apply.
type parseStrategy struct {
	name string
	fn   func(lines []string) (int, bool)
}

var parseStrategies = []parseStrategy{
	{
		name: "selected_line",
		fn: func(lines []string) (int, bool) {
			for _, line := range lines {
				if m := selectedLineRe.FindStringSubmatch(line); m != nil {
					n, err := strconv.Atoi(m[1])
					return n, err == nil
				}
			}
			return 0, false
		},
	},
	{
		name: "trailing_number",
		fn: func(lines []string) (int, bool) {
			if len(lines) == 0 {
				return 0, false
			}
			last := lines[len(lines)-1]
			if !digitsOnlyRe.MatchString(last) {
				return 0, false
			}
			n, err := strconv.Atoi(last)
			return n, err == nil
		},
	},
	{
		name: "standalone_number",
		fn: func(lines []string) (int, bool) {
			for i := len(lines) - 1; i >= 0; i-- {
				if digitsOnlyRe.MatchString(lines[i]) {
					n, err := strconv.Atoi(lines[i])
					return n, err == nil
				}
			}
			return 0, false
		},
	},
}

// DecodeSelection parses a selection response down to a 0-based roster
// index, trying each strategy in order. Returns an error when no
// strategy applies or the number falls outside the roster.
func DecodeSelection(response string, rosterSize int) (int, error) {
	lines := nonEmptyLines(response)
	for _, s := range parseStrategies {
		n, ok := s.fn(lines)
		if !ok {
			continue
		}
		index := n - 1
		if index < 0 || index >= rosterSize {
			return -1, fmt.Errorf("strategy %s produced out-of-range selection %d (roster size %d)", s.name, n, rosterSize)
		}
		return index, nil
	}
	return -1, fmt.Errorf("no selection number found in response")
}

// selectionAnalysis is what the analysis prompt asked the model to
// report alongside the numeric choice.
type selectionAnalysis struct {
	continuation    bool
	previousSpeaker string
}

// decodeAnalysis extracts the continuation flag and previous speaker
// from the structured lines of a selection response. Both are best
// effort; absent lines yield zero values.
func decodeAnalysis(response string) selectionAnalysis {
	var out selectionAnalysis
	for _, line := range nonEmptyLines(response) {
		switch {
		case strings.HasPrefix(line, analysisLinePrefix):
			if strings.Contains(strings.ToLower(line), "yes") {
				out.continuation = true
			}
		case strings.HasPrefix(line, speakerLinePrefix):
			speaker := strings.TrimSpace(strings.TrimPrefix(line, speakerLinePrefix))
			speaker = strings.TrimPrefix(speaker, "u/")
			if speaker != "" && !strings.EqualFold(speaker, "none") {
				out.previousSpeaker = speaker
			}
		}
	}
	return out
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
