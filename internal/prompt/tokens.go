package prompt

import "unicode/utf8"

// TokenEstimator approximates the token count of a text. The budget
// rules are unit-agnostic; any monotone estimator works.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// messageOverhead accounts for role labels and delimiters per message.
const messageOverhead = 4

// SimpleTokenEstimator is a character-count heuristic: roughly 4
// characters per token for Latin text. The budget is a soft limit that
// keeps the context window bounded, so precision is not a goal.
type SimpleTokenEstimator struct{}

func (SimpleTokenEstimator) EstimateTokens(text string) int {
	runes := utf8.RuneCountInString(text)
	if runes == 0 {
		return 0
	}
	tokens := runes / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
