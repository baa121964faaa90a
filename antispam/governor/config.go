package governor

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultPointsThreshold     = 10
	DefaultPostIntervalSeconds = 30
	DefaultRejectionMessage    = "Not allowed to post content more than once every {0} seconds."
)

type Config struct {
	PointsThreshold     int64    `json:"points_threshold"`
	PostIntervalSeconds int      `json:"post_interval_seconds"`
	RejectionMessage    string   `json:"rejection_message"`
	EmailDomains        []string `json:"email_domain_whitelist"`
	Groups              []int64  `json:"group_whitelist"`
}

func DefaultConfig() Config {
	return Config{
		PointsThreshold:     DefaultPointsThreshold,
		PostIntervalSeconds: DefaultPostIntervalSeconds,
		RejectionMessage:    DefaultRejectionMessage,
	}
}

func normalizeInterval(seconds int) int {
	if seconds < 1 {
		return DefaultPostIntervalSeconds
	}
	return seconds
}

// Splits a whitespace-separated list of email domain suffixes, dropping repeats. Blank input yields an empty (disabled) whitelist.
func ParseDomainWhitelist(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// Splits a whitespace-separated list of numeric group IDs. Any non-numeric entry fails the whole list.
func ParseGroupWhitelist(raw string) ([]int64, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, &InvalidGroupError{Raw: f, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Substitutes {0}, {1}, ... placeholders. Templates without placeholders are returned verbatim.
func FormatMessage(template string, args ...any) string {
	if len(args) == 0 {
		return template
	}
	pairs := make([]string, 0, 2*len(args))
	for i, a := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", fmt.Sprint(a))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
