package guardrail

import "regexp"

// Category is a threat category tag. Tag names are part of the external
// contract: they appear in security events and on the event bus.
type Category string

const (
	CategoryTaskOverride    Category = "task_override"
	CategoryPromptInjection Category = "prompt_injection"
	CategorySystemReference Category = "system_reference"
	CategoryDangerousAction Category = "dangerous_action"
	CategorySensitiveData   Category = "sensitive_data"
	CategoryCredentialLeak  Category = "credential_leak"
)

// Severity of a matched pattern.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for max-severity computation.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Critical reports whether the severity invalidates content even outside
// strict mode.
func (s Severity) Critical() bool {
	return s == SeverityCritical
}

// Pattern is one compiled detection rule. Replacement markers are chosen so
// that no marker re-matches any pattern in either family.
type Pattern struct {
	Name        string
	Category    Category
	Severity    Severity
	Regex       *regexp.Regexp
	Replacement string
}

// basePatterns apply to all untrusted content, in this order. Ordering
// matters: override/injection rules run before the generic redactors so a
// payload combining both yields the instruction-block marker first.
var basePatterns = []*Pattern{
	{
		Name:        "instruction_override",
		Category:    CategoryTaskOverride,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)ignore\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier)\s+(?:instructions?|prompts?|commands?)`),
		Replacement: "[BLOCKED_OVERRIDE_ATTEMPT]",
	},
	{
		Name:        "instruction_disregard",
		Category:    CategoryTaskOverride,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)(?:disregard|forget)\s+(?:all\s+|everything\s+)?(?:previous|prior|above|your)\s+(?:instructions?|rules?|training)`),
		Replacement: "[BLOCKED_OVERRIDE_ATTEMPT]",
	},
	{
		Name:        "task_replacement",
		Category:    CategoryTaskOverride,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)your\s+(?:new|real|actual)\s+(?:task|goal|instructions?)\s+(?:is|are)`),
		Replacement: "[BLOCKED_OVERRIDE_ATTEMPT]",
	},
	{
		Name:        "fake_system_tag",
		Category:    CategoryPromptInjection,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)<\s*/?\s*system\s*>|\[\s*/?\s*system\s*\]`),
		Replacement: "[BLOCKED_INJECTION]",
	},
	{
		Name:        "role_reassignment",
		Category:    CategoryPromptInjection,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)you\s+are\s+now\s+(?:a|an|in|the)\b`),
		Replacement: "[BLOCKED_INJECTION]",
	},
	{
		Name:        "persona_hijack",
		Category:    CategoryPromptInjection,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)pretend\s+(?:to\s+be|you\s+are)\b|act\s+as\s+if\s+you\b`),
		Replacement: "[BLOCKED_INJECTION]",
	},
	{
		Name:        "system_prompt_probe",
		Category:    CategorySystemReference,
		Severity:    SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)(?:reveal|show|print|repeat|output)\s+(?:your\s+)?(?:system\s+prompt|initial\s+instructions|hidden\s+instructions)`),
		Replacement: "[BLOCKED_SYSTEM_REF]",
	},
	{
		Name:        "developer_mode",
		Category:    CategorySystemReference,
		Severity:    SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)(?:developer|debug|god)\s+mode\s+(?:enabled|activated|on)`),
		Replacement: "[BLOCKED_SYSTEM_REF]",
	},
	{
		Name:        "destructive_shell",
		Category:    CategoryDangerousAction,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)rm\s+-rf?\s+\S+|del\s+/[fsq]\s+\S+`),
		Replacement: "[BLOCKED_DANGEROUS_ACTION]",
	},
	{
		Name:        "destructive_sql",
		Category:    CategoryDangerousAction,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)(?:drop|truncate)\s+table\s+\w+|delete\s+from\s+\w+\s+where\s+1\s*=\s*1`),
		Replacement: "[BLOCKED_DANGEROUS_ACTION]",
	},
	{
		Name:        "mass_deletion",
		Category:    CategoryDangerousAction,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)delete\s+all\s+(?:files|data|records|emails|accounts)`),
		Replacement: "[BLOCKED_DANGEROUS_ACTION]",
	},
	{
		Name:        "ssn",
		Category:    CategorySensitiveData,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		Replacement: "[REDACTED_SSN]",
	},
	{
		Name:        "payment_card",
		Category:    CategorySensitiveData,
		Severity:    SeverityHigh,
		Regex:       regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}\b`),
		Replacement: "[REDACTED_CARD]",
	},
	{
		Name:        "password_assignment",
		Category:    CategoryCredentialLeak,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*\S+`),
		Replacement: "[REDACTED_CREDENTIAL]",
	},
	{
		Name:        "api_key_assignment",
		Category:    CategoryCredentialLeak,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)(?:api[_-]?key|secret[_-]?key|access[_-]?token|auth[_-]?token)\s*[:=]\s*\S+`),
		Replacement: "[REDACTED_CREDENTIAL]",
	},
	{
		Name:        "bearer_token",
		Category:    CategoryCredentialLeak,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.~+/]{16,}=*`),
		Replacement: "[REDACTED_CREDENTIAL]",
	},
	{
		Name:        "provider_secret",
		Category:    CategoryCredentialLeak,
		Severity:    SeverityCritical,
		Regex:       regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{20,}\b`),
		Replacement: "[REDACTED_CREDENTIAL]",
	},
}

// strictPatterns are applied only when the session sets strictSecurity.
var strictPatterns = []*Pattern{
	{
		Name:        "email_address",
		Category:    CategorySensitiveData,
		Severity:    SeverityLow,
		Regex:       regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		Replacement: "[REDACTED_EMAIL]",
	},
	{
		Name:        "phone_number",
		Category:    CategorySensitiveData,
		Severity:    SeverityMedium,
		Regex:       regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]\d{4}\b`),
		Replacement: "[REDACTED_PHONE]",
	},
}

// activePatterns returns the pattern family for the given mode.
func activePatterns(strict bool) []*Pattern {
	if !strict {
		return basePatterns
	}
	out := make([]*Pattern, 0, len(basePatterns)+len(strictPatterns))
	out = append(out, basePatterns...)
	out = append(out, strictPatterns...)
	return out
}
