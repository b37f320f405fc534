package http

import (
	"fmt"
	"regexp"
)

// MaxLoggedResponseLength bounds how much raw model output reaches logs.
// Responses can contain source code from the diff under review, so logs
// only ever carry an excerpt.
const MaxLoggedResponseLength = 200

// TruncateForLogging returns the first MaxLoggedResponseLength characters
// of a response plus a truncation marker when shortened.
func TruncateForLogging(response string) string {
	if len(response) <= MaxLoggedResponseLength {
		return response
	}
	return response[:MaxLoggedResponseLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}

// RedactAPIKey keeps only the last four characters of a key.
func RedactAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return fmt.Sprintf("[REDACTED-%s]", key[len(key)-4:])
}

var urlSecretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`key=[^&"\s]+`),
	regexp.MustCompile(`apiKey=[^&"\s]+`),
	regexp.MustCompile(`api_key=[^&"\s]+`),
	regexp.MustCompile(`token=[^&"\s]+`),
	regexp.MustCompile(`access_token=[^&"\s]+`),
}

// RedactURLSecrets strips API keys from URL query parameters so error
// messages can be logged verbatim.
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}
	result := text
	for _, re := range urlSecretPatterns {
		pattern := re.String()
		name := pattern[:len(pattern)-len(`=[^&"\s]+`)]
		result = re.ReplaceAllString(result, name+"=[REDACTED]")
	}
	return result
}
