package client

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/rs/zerolog"
)

// apiKeyPattern matches the api_key query parameter in free-form text such
// as url.Error messages.
var apiKeyPattern = regexp.MustCompile(`(api_key=)[^&\s"]+`)

// RedactURL masks the api_key query parameter of a URL.
func RedactURL(raw string) string {
	return apiKeyPattern.ReplaceAllString(raw, "${1}xxxxx")
}

// stripAPIKey returns u without the api_key query parameter.
func stripAPIKey(u *url.URL) string {
	q := u.Query()
	if !q.Has(apiKeyParam) {
		return u.String()
	}
	q.Del(apiKeyParam)
	stripped := *u
	stripped.RawQuery = q.Encode()
	return stripped.String()
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(redactFields(keysAndValues)).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(redactFields(keysAndValues)).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(redactFields(keysAndValues)).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(redactFields(keysAndValues)).Msg(msg)
}

// redactFields masks API keys in string and error values.
func redactFields(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, len(keysAndValues))
	for i, v := range keysAndValues {
		switch v := v.(type) {
		case string:
			out[i] = RedactURL(v)
		case error:
			out[i] = RedactURL(v.Error())
		case fmt.Stringer:
			out[i] = RedactURL(v.String())
		default:
			out[i] = v
		}
	}
	return out
}
