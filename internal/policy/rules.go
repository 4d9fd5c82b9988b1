// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package policy

import (
	"regexp"
	"slices"
	"sync"
)

var (
	rulesOnce sync.Once
	rules     []Rule
)

// DefaultRules returns CredentialRules followed by InjectionRules. The
// patterns are compiled once and shared.
func DefaultRules() []Rule {
	rulesOnce.Do(func() {
		rules = slices.Concat(CredentialRules(), InjectionRules())
	})
	return slices.Clone(rules)
}

// CredentialRules match secrets that a query result should never carry to
// an agent. Patterns stop at quotes so redaction keeps JSON text intact.
func CredentialRules() []Rule {
	return []Rule{
		{Name: "aws_access_key", Pattern: regexp.MustCompile(`AKIA[0-9A-Z]{16}`), Severity: SeverityHigh},
		{Name: "openai_api_key", Pattern: regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{20,}`), Severity: SeverityHigh},
		{Name: "openai_legacy_key", Pattern: regexp.MustCompile(`sk-[A-Za-z0-9]{40,}`), Severity: SeverityMedium},
		{Name: "anthropic_api_key", Pattern: regexp.MustCompile(`sk-ant-api\d{2}-[A-Za-z0-9_-]{20,}`), Severity: SeverityHigh},
		{Name: "google_api_key", Pattern: regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`), Severity: SeverityHigh},
		{Name: "github_pat", Pattern: regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`), Severity: SeverityHigh},
		{Name: "github_fine_grained_pat", Pattern: regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`), Severity: SeverityHigh},
		{Name: "slack_token", Pattern: regexp.MustCompile(`xox[bpas]-[A-Za-z0-9-]+`), Severity: SeverityHigh},
		{Name: "vault_token", Pattern: regexp.MustCompile(`hvs\.[A-Za-z0-9_-]{24,}`), Severity: SeverityHigh},
		{Name: "bearer_token", Pattern: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`), Severity: SeverityHigh},
		{Name: "pem_private_key", Pattern: regexp.MustCompile(`-----BEGIN\s+(RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`), Severity: SeverityHigh},
		{
			Name:     "database_connection_string",
			Pattern:  regexp.MustCompile(`(?i)(postgres(?:ql)?|mysql|mongodb|redis|teradata(?:sql)?|jdbc:[a-z]+)://[^\s:@"']+:[^\s@"']+@[^\s"']+`),
			Severity: SeverityHigh,
		},
		{
			Name:     "odbc_password",
			Pattern:  regexp.MustCompile(`(?i)(?:Server|Data Source|DBCName)\s*=\s*[^;"]+;[^"]*?(?:Password|Pwd)\s*=\s*[^;"]+`),
			Severity: SeverityHigh,
		},
		{Name: "keyring_uri", Pattern: regexp.MustCompile(`keyring://[^\s"']+`), Severity: SeverityMedium},
	}
}

// InjectionRules match text planted in warehouse data to take over the
// agent reading the result.
func InjectionRules() []Rule {
	return []Rule{
		{
			Name:     "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)(ignore|disregard|override|forget|do\s+not\s+follow)\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)`),
			Severity: SeverityHigh,
		},
		{
			Name:     "system_block_injection",
			Pattern:  regexp.MustCompile(`(?i)(?:<\|?system\|?>|\[system\]|<<SYS>>)`),
			Severity: SeverityHigh,
		},
		{
			Name:     "role_impersonation",
			Pattern:  regexp.MustCompile(`(?is)\[INST\].{0,1000}?\[/INST\]`),
			Severity: SeverityHigh,
		},
	}
}
