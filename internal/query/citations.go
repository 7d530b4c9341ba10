package query

import (
	"regexp"
	"strconv"
	"strings"
)

var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// ValidationResult reports what citation validation did to an answer.
type ValidationResult struct {
	Answer    string
	Cited     []int // 1-based markers in order of first reference
	Violated  bool  // answer referenced a marker outside 1..n
	Discarded bool  // policy removed the whole answer
}

// ValidateCitations checks that every citation marker in answer falls in
// 1..n and applies the violation policy: "strip" removes the sentences
// carrying out-of-range markers, "discard" drops the whole answer. Pure
// function so the grounding guarantee stays independently testable.
func ValidateCitations(answer string, n int, policy string) ValidationResult {
	res := ValidationResult{Answer: answer}

	invalid := false
	for _, m := range markerRe.FindAllStringSubmatch(answer, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n {
			invalid = true
			break
		}
	}

	if invalid {
		res.Violated = true
		if policy == "discard" {
			res.Answer = ""
			res.Discarded = true
			return res
		}
		res.Answer = stripViolatingSentences(answer, n)
		if strings.TrimSpace(res.Answer) == "" {
			res.Discarded = true
			return res
		}
	}

	res.Cited = citedOrder(res.Answer, n)
	return res
}

// citedOrder lists the valid markers in order of first reference.
func citedOrder(answer string, n int) []int {
	seen := make(map[int]bool)
	var order []int
	for _, m := range markerRe.FindAllStringSubmatch(answer, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 1 || idx > n || seen[idx] {
			continue
		}
		seen[idx] = true
		order = append(order, idx)
	}
	return order
}

// stripViolatingSentences removes every sentence that carries an
// out-of-range marker and renormalizes whitespace.
func stripViolatingSentences(answer string, n int) string {
	var kept []string
	for _, sentence := range splitSentences(answer) {
		ok := true
		for _, m := range markerRe.FindAllStringSubmatch(sentence, -1) {
			idx, err := strconv.Atoi(m[1])
			if err != nil || idx < 1 || idx > n {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, strings.TrimSpace(sentence))
		}
	}
	return strings.Join(kept, " ")
}

// splitSentences breaks text on sentence-final punctuation, keeping the
// punctuation with the sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}
