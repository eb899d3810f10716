package capture

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrSensitive rejects a captured prompt that looks like it carries
// personal data or a credential.
var ErrSensitive = errors.New("capture: sensitive data")

type rule struct {
	name string
	re   *regexp.Regexp
}

// Order matters only for the reported rule name: SSN-shaped runs are
// checked before the looser phone pattern.
var rules = []rule{
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"aws_key", regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]{5,}\.[A-Za-z0-9_\-]{5,}\.[A-Za-z0-9_\-]{5,}`)},
	{"api_key", regexp.MustCompile(`\b(?:sk|pk|rk)[-_](?:[a-z]+[-_])?[A-Za-z0-9_\-]{16,}|\b(?:ghp|gho|ghs|xox[abpr])[-_][A-Za-z0-9\-]{16,}|\bAIza[0-9A-Za-z_\-]{35}`)},
	{"password", regexp.MustCompile(`(?i)\b(?:password|passwd|pwd|passcode)\s*(?:[:=]|\bis\b)\s*\S+`)},
	{"card", regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"phone", regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?(?:\(\d{3}\)|\b\d{3})[ .\-]?\d{3}[ .\-]?\d{4}\b`)},
}

// Sensitive returns the name of the first rule text matches.
func Sensitive(text string) (string, bool) {
	for _, r := range rules {
		if r.re.MatchString(text) {
			return r.name, true
		}
	}
	return "", false
}

// Guard returns an error wrapping ErrSensitive when text matches a rule.
func Guard(text string) error {
	if name, ok := Sensitive(text); ok {
		return fmt.Errorf("%w: %s", ErrSensitive, name)
	}
	return nil
}
