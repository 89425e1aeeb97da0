package retry

import (
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// retryMessage renders the warning emitted before a retry, e.g.
//
//	Query failed: 'deadlock'. Sleeping for 2s, reconnecting, retrying for the 1st time.
func retryMessage(err error, actions []dbretry.Action, delay time.Duration, attempt int) string {
	steps := make([]string, 0, len(actions))
	for _, a := range actions {
		switch a {
		case dbretry.ActionSleep:
			steps = append(steps, "sleeping for "+formatSeconds(delay))
		case dbretry.ActionReconnect:
			steps = append(steps, "reconnecting")
		case dbretry.ActionRetry:
			steps = append(steps, "retrying")
		}
	}

	var b strings.Builder
	b.WriteString("Query failed: '")
	b.WriteString(err.Error())
	b.WriteString("'. ")
	b.WriteString(capitalize(strings.Join(steps, ", ")))
	b.WriteString(" for the ")
	b.WriteString(ordinal(attempt))
	b.WriteString(" time.")
	return b.String()
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64) + "s"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ordinal renders 1 as "1st", 2 as "2nd", 11 as "11th", 22 as "22nd".
func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
