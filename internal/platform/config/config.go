package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Defaults for consent lifecycle knobs. Overridable via environment.
const (
	DefaultRenewDays     = 14
	DefaultAuditKeepLast = 500
)

// Server captures process level configuration for the consent core and its
// admin surface.
type Server struct {
	Addr            string
	ConsentFile     string
	PolicyFile      string
	PublicPolicyURL string
	RenewDays       int
	AuditKeepLast   int
	AdminToken      string
	Environment     string
	LogLevel        string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("MEMEBOT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	consentFile := os.Getenv("MEMEBOT_CONSENT_FILE")
	if consentFile == "" {
		consentFile = filepath.Join("data", "user_consents.json")
	}

	policyFile := os.Getenv("MEMEBOT_POLICY_FILE")
	if policyFile == "" {
		policyFile = "privacy_policy.md"
	}

	renewDays := DefaultRenewDays
	if v := os.Getenv("MEMEBOT_RENEW_DAYS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			renewDays = parsed
		}
	}

	auditKeepLast := DefaultAuditKeepLast
	if v := os.Getenv("MEMEBOT_AUDIT_KEEP_LAST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			auditKeepLast = parsed
		}
	}

	environment := os.Getenv("MEMEBOT_ENV")
	if environment == "" {
		environment = "development"
	}

	return Server{
		Addr:            addr,
		ConsentFile:     consentFile,
		PolicyFile:      policyFile,
		PublicPolicyURL: os.Getenv("MEMEBOT_PUBLIC_POLICY_URL"),
		RenewDays:       renewDays,
		AuditKeepLast:   auditKeepLast,
		AdminToken:      os.Getenv("MEMEBOT_ADMIN_TOKEN"),
		Environment:     environment,
		LogLevel:        os.Getenv("MEMEBOT_LOG_LEVEL"),
	}
}
