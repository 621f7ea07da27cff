// mail_test.go
package mail

import (
	"testing"
	"time"
)

func TestFormatExpiry(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{time.Minute, "1 minute"},
		{30 * time.Minute, "30 minutes"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{24 * time.Hour, "1 day"},
		{72 * time.Hour, "3 days"},
	}
	for _, c := range cases {
		if got := formatExpiry(c.d); got != c.want {
			t.Errorf("formatExpiry(%v): expected %q, got %q", c.d, c.want, got)
		}
	}
}
