package log

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/patrickmn/go-cache"
)

var loggerCache *cache.Cache
var defaultLoggerCacheExpiry = 6 * time.Hour

// Overridden in tests to capture output
var logDestination io.Writer = os.Stderr

func init() {
	loggerCache = cache.New(defaultLoggerCacheExpiry, 10*time.Minute)
}

// Permanently add context to the logger. Any future logging for this Request ID will include this context
func AddContext(requestID string, keyvals ...interface{}) {
	loggerCache.Set(requestID, kitlog.With(getLogger(requestID), redactKeyvals(keyvals...)...), defaultLoggerCacheExpiry)
}

func Log(requestID string, message string, keyvals ...interface{}) {
	_ = kitlog.With(getLogger(requestID), "msg", message).Log(redactKeyvals(keyvals...)...)
}

// Log in situations where we don't have access to the Request ID.
// Should be used sparingly and with as much context inserted into the message as possible
func LogNoRequestID(message string, keyvals ...interface{}) {
	_ = kitlog.With(newLogger(), "msg", message).Log(redactKeyvals(keyvals...)...)
}

func LogError(requestID string, message string, err error, keyvals ...interface{}) {
	errMsg := "<nil>"
	if err != nil {
		errMsg = err.Error()
	}
	msgLogger := kitlog.With(getLogger(requestID), "msg", message)
	errLogger := kitlog.With(msgLogger, "err", errMsg)
	_ = errLogger.Log(redactKeyvals(keyvals...)...)
}

// Forget drops the cached logger of a finished job
func Forget(requestID string) {
	loggerCache.Delete(requestID)
}

func getLogger(requestID string) kitlog.Logger {
	logger, found := loggerCache.Get(requestID)
	if found {
		return logger.(kitlog.Logger)
	}

	newLogger := kitlog.With(newLogger(), "request_id", requestID)
	err := loggerCache.Add(requestID, newLogger, defaultLoggerCacheExpiry)
	if err != nil {
		_ = newLogger.Log("msg", "error adding logger to cache", "request_id", requestID)
	}
	return newLogger
}

func newLogger() kitlog.Logger {
	newLogger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(logDestination))
	return kitlog.With(newLogger, "ts", kitlog.DefaultTimestampUTC)
}

func redactKeyvals(keyvals ...interface{}) []interface{} {
	res := make([]interface{}, 0, len(keyvals))
	for _, v := range keyvals {
		if s, ok := v.(string); ok {
			res = append(res, RedactURL(s))
		} else {
			res = append(res, v)
		}
	}
	return res
}

var tokenParam = regexp.MustCompile(`(?i)((?:token|apikey|api_key|key)=)[^&\s]+`)

// RedactURL strips the password and any token-like query parameters from a
// URL. Strings that don't look like URLs are returned unchanged.
func RedactURL(str string) string {
	if !strings.Contains(str, "://") {
		return str
	}
	u, err := url.Parse(str)
	if err != nil {
		return "REDACTED"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return tokenParam.ReplaceAllString(u.String(), "${1}xxxxx")
}

// RedactLogs redacts every URL found in a delimited block of process output
func RedactLogs(str, delim string) string {
	lines := strings.Split(str, delim)
	for i, line := range lines {
		lines[i] = RedactURL(line)
	}
	return strings.Join(lines, delim)
}

func Sprintf(format string, a ...any) string {
	return RedactURL(fmt.Sprintf(format, a...))
}
