package rag

import (
	"regexp"
	"strconv"
	"strings"
)

// NumberWords maps the spelled-out numbers zero to ten to their digits.
var NumberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

var (
	numberRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)
	wordRe   = regexp.MustCompile(`(?i)\b(zero|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
	noneRe   = regexp.MustCompile(`(?i)\b(no|none)\s+(patients?|practitioners?|substances?|immunizations?|allerg\w*|records?)\b`)

	// quantityRe matches questions whose answer is a quantity other than a
	// count: aggregates, ages, years and shares.
	quantityRe = regexp.MustCompile(`(?i)\b(average|avg|median|mean\s+(age|number|count|value)|minimum|maximum|how\s+old|ages?|aged|what\s+year|which\s+year|in\s+what\s+year|percent(age)?|proportion|ratio|sum\s+of|total)\b`)
)

var countingPrefixes = []string{
	"how many", "how much", "count ", "what is the number", "what's the number",
	"what is the total", "what's the total", "number of", "total number",
}

// IsCountingQuestion reports whether question asks for a count or amount.
func IsCountingQuestion(question string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, p := range countingPrefixes {
		if strings.HasPrefix(q, p) || strings.Contains(q, " "+p) {
			return true
		}
	}
	return false
}

// IsNumericQuestion reports whether question asks for a number: a count,
// an aggregate such as an average, an age, a year or a share.
func IsNumericQuestion(question string) bool {
	return IsCountingQuestion(question) || quantityRe.MatchString(question)
}

// FirstNumber returns the first number stated in text, as digits or as a
// word from zero to ten. "no patients" counts as zero.
func FirstNumber(text string) (float64, bool) {
	best := -1
	var value float64

	if loc := numberRe.FindStringIndex(text); loc != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(text[loc[0]:loc[1]], ",", ""), 64); err == nil {
			best, value = loc[0], v
		}
	}
	if loc := wordRe.FindStringSubmatchIndex(text); loc != nil && (best < 0 || loc[0] < best) {
		best, value = loc[0], float64(NumberWords[strings.ToLower(text[loc[2]:loc[3]])])
	}
	if loc := noneRe.FindStringIndex(text); loc != nil && (best < 0 || loc[0] < best) {
		best, value = loc[0], 0
	}
	return value, best >= 0
}
