// Package security cleans user prompts before they reach the LLM, limits
// request rates per source, and masks credentials in logged text.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxPromptLength is the prompt limit in characters.
const DefaultMaxPromptLength = 4000

// GuardResult holds the outcome of a prompt check.
type GuardResult struct {
	Clean       string   // the cleaned prompt
	WasModified bool     // true if cleaning changed the input
	Warnings    []string // non-blocking concerns
	Blocked     bool     // true if the prompt must not be sent
	BlockReason string
}

// GuardConfig holds configuration for the PromptGuard.
type GuardConfig struct {
	MaxLength      int      // maximum prompt length in characters (default: 4000)
	ExtraBlocklist []string // phrases that block a prompt
}

// PromptGuard cleans and checks user prompts. Model output is not its
// concern: the sanitizer in genui handles that.
type PromptGuard struct {
	maxLength         int
	injectionPatterns []*regexp.Regexp
	blocklist         []string
}

// NewPromptGuard creates a PromptGuard with injection detection patterns.
func NewPromptGuard(cfg GuardConfig) *PromptGuard {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxPromptLength
	}
	g := &PromptGuard{maxLength: cfg.MaxLength}
	for _, phrase := range cfg.ExtraBlocklist {
		if phrase = strings.ToLower(strings.TrimSpace(phrase)); phrase != "" {
			g.blocklist = append(g.blocklist, phrase)
		}
	}

	patterns := []string{
		// Instruction override attempts.
		`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,
		`(?i)disregard\s+(all\s+)?(previous|prior|above)`,
		`(?i)forget\s+(all\s+)?(previous|prior|above)\s+(instructions?|context)`,
		// System prompt extraction.
		`(?i)(show|reveal|print|output|display)\s+(your\s+)?(system\s+prompt|instructions|rules)`,
		// Delimiter injection.
		`(?i)<\/?system>`,
		`(?i)\[INST\]|\[\/INST\]`,
		`(?i)<<SYS>>|<<\/SYS>>`,
		// Asking for markup the vocabulary cannot express.
		`(?i)<\s*script\b`,
		`(?i)dangerouslySetInnerHTML`,
	}
	for _, p := range patterns {
		g.injectionPatterns = append(g.injectionPatterns, regexp.MustCompile(p))
	}
	return g
}

// Check cleans a prompt and decides whether it may be sent.
func (g *PromptGuard) Check(input string) GuardResult {
	result := GuardResult{Clean: input}

	if !utf8.ValidString(input) {
		result.Clean = strings.ToValidUTF8(input, "")
		result.WasModified = true
		result.Warnings = append(result.Warnings, "invalid UTF-8 sequences removed")
	}

	cleaned := stripControlChars(result.Clean)
	if cleaned != result.Clean {
		result.Clean = cleaned
		result.WasModified = true
		result.Warnings = append(result.Warnings, "control characters removed")
	}

	trimmed := strings.TrimSpace(result.Clean)
	if trimmed != result.Clean {
		result.Clean = trimmed
		result.WasModified = true
	}
	if result.Clean == "" {
		result.Blocked = true
		result.BlockReason = "prompt is empty"
		return result
	}

	if n := utf8.RuneCountInString(result.Clean); n > g.maxLength {
		result.Blocked = true
		result.BlockReason = fmt.Sprintf("prompt exceeds maximum length (%d > %d)", n, g.maxLength)
		return result
	}

	lower := strings.ToLower(result.Clean)
	for _, blocked := range g.blocklist {
		if strings.Contains(lower, blocked) {
			result.Blocked = true
			result.BlockReason = fmt.Sprintf("prompt contains blocked phrase: %q", blocked)
			return result
		}
	}

	// Injection attempts are reported, not blocked: the sanitizer already
	// confines whatever the model returns.
	if found, matches := g.DetectInjection(result.Clean); found {
		for _, m := range matches {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("potential prompt injection detected: %q", m))
		}
	}
	return result
}

// DetectInjection returns true if the input matches injection patterns.
func (g *PromptGuard) DetectInjection(input string) (bool, []string) {
	var matches []string
	for _, re := range g.injectionPatterns {
		if m := re.FindString(input); m != "" {
			matches = append(matches, m)
		}
	}
	return len(matches) > 0, matches
}

// MaxLength returns the configured prompt limit.
func (g *PromptGuard) MaxLength() int {
	return g.maxLength
}

// stripControlChars removes control characters except \n, \r and \t.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
