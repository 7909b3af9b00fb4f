package logger

import "strings"

// SanitizedEmail masks an email for log lines. The first character of the
// local part and the TLD survive; everything else is starred so operators
// can correlate events without the log stream becoming a PII store.
func SanitizedEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	local := email[:at]
	domain := email[at+1:]

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return local + "@" + strings.Join(labels, ".")
}

// Substrings that mark a query string as carrying credentials or identity.
var sensitiveQueryMarkers = []string{
	"password",
	"token",
	"secret",
	"api_key",
	"apikey",
	"email",
	"auth",
}

// SanitizeQueryString reports whether a raw query string should be redacted
// from request logs instead of written verbatim.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, marker := range sensitiveQueryMarkers {
		if strings.Contains(query, marker) {
			return true
		}
	}
	return false
}
