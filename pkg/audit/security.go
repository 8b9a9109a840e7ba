// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection detects SQL injection patterns.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventEnvironmentDenied is logged when a request names a schema outside the allow-list.
	EventEnvironmentDenied SecurityEventType = "environment_denied"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Endpoint  string            `json:"endpoint"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// SQLInjectionDetails contains specifics of a detected SQL injection attempt.
type SQLInjectionDetails struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// DetectSQLInjection runs libinjection over a free-text value.
// Returns the fingerprint and true when the value looks like SQL injection.
func DetectSQLInjection(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	return string(fingerprint), isSQLi
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is automatically configured with "security_audit" namespace for easy
// filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// ScreenInput checks a free-text request value for SQL injection. A detection is
// logged at ERROR level with "critical" severity and reported as false.
//
// Example usage:
//
//	if !auditor.ScreenInput("/api/assets/tables", "filter", filter, r.RemoteAddr) {
//	    // reject the request
//	}
func (a *SecurityAuditor) ScreenInput(endpoint, field, value, clientIP string) bool {
	fingerprint, isSQLi := DetectSQLInjection(value)
	if !isSQLi {
		return true
	}

	details := SQLInjectionDetails{
		Field:       field,
		Value:       value,
		Fingerprint: fingerprint,
	}
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		Endpoint:  endpoint,
		ClientIP:  clientIP,
		Details:   details,
		Severity:  "critical",
	}

	// Marshaling known types cannot fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("endpoint", endpoint),
		zap.String("field", field),
		zap.String("fingerprint", fingerprint),
		zap.String("client_ip", clientIP),
		zap.String("severity", "critical"),
	)
	return false
}

// LogEnvironmentDenied records a request naming a schema outside the allow-list.
// This is logged at WARN level as these are typically user errors, not attacks.
func (a *SecurityAuditor) LogEnvironmentDenied(endpoint, environment, clientIP string) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventEnvironmentDenied,
		Endpoint:  endpoint,
		ClientIP:  clientIP,
		Details: map[string]string{
			"environment": environment,
		},
		Severity: "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Environment not allowed",
		zap.String("event_json", string(eventJSON)),
		zap.String("endpoint", endpoint),
		zap.String("environment", environment),
		zap.String("client_ip", clientIP),
		zap.String("severity", "warning"),
	)
}
