package secrets

// DefaultRules returns the built-in detection rules. GitLab token prefixes
// are self-identifying, so those rules need no keywords.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "gitlab-pat",
			Description: "GitLab personal, project or group access token",
			Pattern:     `glpat-[0-9A-Za-z_-]{20,}`,
			Severity:    "high",
		},
		{
			ID:          "gitlab-ci-job-token",
			Description: "GitLab CI job token",
			Pattern:     `glcbt-[0-9A-Za-z_-]{20,}`,
			Severity:    "high",
		},
		{
			ID:          "gitlab-runner-token",
			Description: "GitLab runner authentication token",
			Pattern:     `glrt-[0-9A-Za-z_-]{20,}`,
			Severity:    "high",
		},
		{
			ID:          "gitlab-deploy-token",
			Description: "GitLab deploy token",
			Pattern:     `gldt-[0-9A-Za-z_-]{20,}`,
			Severity:    "high",
		},
		{
			ID:          "gitlab-trigger-token",
			Description: "GitLab pipeline trigger token",
			Pattern:     `glptt-[0-9a-f]{40}`,
			Severity:    "high",
		},
		{
			ID:          "gitlab-feed-token",
			Description: "GitLab feed token",
			Pattern:     `glft-[0-9A-Za-z_-]{20,}`,
			Severity:    "medium",
		},
		{
			ID:          "ci-registry-password",
			Description: "Container registry password on a docker login command line",
			Pattern:     `(?i)docker\s+login\b[^\n]*?(?:-p|--password)[ =]\S+`,
			Keywords:    []string{"docker"},
			Severity:    "high",
		},
		{
			ID:          "url-credentials",
			Description: "Credentials embedded in a URL",
			Pattern:     `[a-zA-Z][a-zA-Z0-9+.-]*://[^\s:/@]+:[^\s@/]+@[^\s/]+`,
			Severity:    "high",
		},
		{
			ID:          "bearer-token",
			Description: "HTTP bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9._~+/=-]{16,}`,
			Keywords:    []string{"bearer"},
			Severity:    "high",
		},
		{
			ID:          "private-token-header",
			Description: "GitLab PRIVATE-TOKEN header",
			Pattern:     `(?i)private-token:\s*\S+`,
			Keywords:    []string{"private-token"},
			Severity:    "high",
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key id",
			Pattern:     `\b(?:AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}\b`,
			Severity:    "high",
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS secret access key assignment",
			Pattern:     `(?i)aws_secret_access_key\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`,
			Keywords:    []string{"aws_secret"},
			Severity:    "high",
		},
		{
			ID:          "private-key",
			Description: "PEM private key header",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
			Severity:    "high",
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `\bgh[pousr]_[A-Za-z0-9]{36}\b`,
			Severity:    "high",
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}`,
			Severity:    "medium",
		},
		{
			ID:          "generic-secret-assignment",
			Description: "Assignment to a variable named like a secret",
			Pattern:     `(?i)\b[A-Z0-9_]*(?:PASSWORD|SECRET|TOKEN|API_KEY)[A-Z0-9_]*\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"password", "secret", "token", "api_key"},
			Severity:    "medium",
		},
	}
}
