package redisx

import "fmt"

const ns = "eventix:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

// PrefixRateLimit is the key prefix for one rate-limit scope; the limiter
// appends the caller key to it.
func PrefixRateLimit(scope string) string {
	return fmt.Sprintf("%s:rl:%s", ns, scope)
}

func ChannelRealtime() string {
	return ns + ":realtime"
}
