package tokenizer

import "unicode"

// EstimatorTokenizer is a character-count-based token estimator.
// It distinguishes CJK and ASCII characters for better accuracy
// compared to a naive len/4 approach.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer creates a generic estimator.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

// CountTokens estimates the token count: CJK characters count as one
// token each, everything else averages four characters per token.
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	var cjk, other int
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		} else {
			other++
		}
	}

	tokens := cjk + (other+3)/4
	if tokens < 1 {
		tokens = 1
	}
	return tokens, nil
}

// MaxTokens returns the assumed context size.
func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

// Name returns the tokenizer name.
func (e *EstimatorTokenizer) Name() string { return "estimator" }
