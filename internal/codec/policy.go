package codec

import (
	"fmt"
	"strings"
)

// UnknownKeyPolicy decides what happens to payload keys that were not declared.
type UnknownKeyPolicy int

const (
	// RejectUnknown fails the whole payload.
	RejectUnknown UnknownKeyPolicy = iota
	// IgnoreUnknown drops the toggle silently.
	IgnoreUnknown
	// WarnUnknown drops the toggle and logs a warning.
	WarnUnknown
)

func (p UnknownKeyPolicy) String() string {
	switch p {
	case RejectUnknown:
		return "reject"
	case IgnoreUnknown:
		return "ignore"
	case WarnUnknown:
		return "warn"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseUnknownKeyPolicy accepts "reject", "ignore" or "warn" in any case.
func ParseUnknownKeyPolicy(s string) (UnknownKeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectUnknown, nil
	case "ignore":
		return IgnoreUnknown, nil
	case "warn":
		return WarnUnknown, nil
	default:
		return 0, fmt.Errorf("unknown key policy %q (want reject, ignore or warn)", s)
	}
}

// UnmarshalText lets the policy be read from environment variables.
func (p *UnknownKeyPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseUnknownKeyPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p UnknownKeyPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
