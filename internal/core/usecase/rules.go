package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// ClassifierRules is the vocabulary behind the routing heuristic. The rule
// set is deliberately data, not code: misclassification is the largest
// source of end-to-end accuracy loss, so the lists have to be tunable
// without touching the classifier.
type ClassifierRules struct {
	// MetricVocabulary lists entity/metric names known to exist in the
	// structured store. A hit is a strong structured-intent signal.
	MetricVocabulary []string `yaml:"metric_vocabulary"`

	// QuantitativeCues are generic tabular-intent words and phrases.
	QuantitativeCues []string `yaml:"quantitative_cues"`

	// ExplanatoryCues are open-ended/narrative words and phrases.
	ExplanatoryCues []string `yaml:"explanatory_cues"`
}

func DefaultClassifierRules() ClassifierRules {
	return ClassifierRules{
		MetricVocabulary: []string{
			"revenue", "ebitda", "profit", "margin", "income", "sales",
			"cost", "expense", "assets", "liabilities", "cash", "headcount",
			"capex", "opex", "dividend", "eps",
		},
		QuantitativeCues: []string{
			"how much", "how many", "total", "average", "sum", "count",
			"maximum", "minimum", "median", "value", "amount", "percentage",
			"ratio", "figure", "number of",
		},
		ExplanatoryCues: []string{
			"why", "explain", "describe", "elaborate", "discuss", "overview",
			"summarize", "summarise", "context", "reason", "impact",
			"implication", "how does", "what does", "tell me about",
			"compare the strategy", "outlook",
		},
	}
}

// LoadClassifierRules reads a YAML rules file. Lists left empty in the file
// fall back to the built-in defaults, so a file can override a single list.
func LoadClassifierRules(path string) (ClassifierRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ClassifierRules{}, fmt.Errorf("read classifier rules: %w", err)
	}

	var rules ClassifierRules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return ClassifierRules{}, fmt.Errorf("parse classifier rules: %w", err)
	}

	def := DefaultClassifierRules()
	if len(rules.MetricVocabulary) == 0 {
		rules.MetricVocabulary = def.MetricVocabulary
	}
	if len(rules.QuantitativeCues) == 0 {
		rules.QuantitativeCues = def.QuantitativeCues
	}
	if len(rules.ExplanatoryCues) == 0 {
		rules.ExplanatoryCues = def.ExplanatoryCues
	}
	return rules, nil
}

var periodTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(19|20)\d{2}$`),
	regexp.MustCompile(`^q[1-4]$`),
	regexp.MustCompile(`^fy(19|20)?\d{2}$`),
	regexp.MustCompile(`^h[12]$`),
}

// matchSignals returns the structured and explanatory signal tokens found in
// the question. Single-word rules match against the token set; multi-word
// rules match as normalized substrings.
func (r ClassifierRules) matchSignals(question string) (structured, explanatory []string) {
	normalized := strings.ToLower(question)
	tokens := splitAlphaNumLower(question)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		tokenSet[token] = struct{}{}
	}

	match := func(rules []string) []string {
		var hits []string
		for _, rule := range rules {
			rule = strings.ToLower(strings.TrimSpace(rule))
			if rule == "" {
				continue
			}
			if strings.ContainsRune(rule, ' ') {
				if strings.Contains(normalized, rule) {
					hits = append(hits, rule)
				}
				continue
			}
			if _, ok := tokenSet[rule]; ok {
				hits = append(hits, rule)
			}
		}
		return hits
	}

	structured = append(structured, match(r.MetricVocabulary)...)
	structured = append(structured, match(r.QuantitativeCues)...)
	for _, token := range tokens {
		for _, pattern := range periodTokenPatterns {
			if pattern.MatchString(token) {
				structured = append(structured, token)
				break
			}
		}
	}

	explanatory = match(r.ExplanatoryCues)
	return structured, explanatory
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
