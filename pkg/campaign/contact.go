package campaign

import (
	"errors"
	"strings"
)

// Contact is one destination in a campaign. Fields carries every column of
// the source row (CSV or stored list) for placeholder substitution; Name and
// Phone are lifted out of it for convenience.
type Contact struct {
	Name   string
	Phone  string
	Fields map[string]string
}

// Label is what progress snapshots show for this contact.
func (c Contact) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Phone != "" {
		return c.Phone
	}
	return "unknown"
}

// Render substitutes every {{field}} placeholder in body with the contact's
// value. Placeholders without a matching field are left verbatim — never
// blanked — so a malformed list is visible in the output rather than silent.
func (c Contact) Render(body string) string {
	out := body
	for key, value := range c.Fields {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	if c.Name != "" {
		out = strings.ReplaceAll(out, "{{name}}", c.Name)
	}
	if c.Phone != "" {
		out = strings.ReplaceAll(out, "{{phone}}", c.Phone)
	}
	return out
}

// ErrNoDestination marks a contact without a usable phone field.
var ErrNoDestination = errors.New("contact has no usable destination number")

// NormalizePhone strips everything but digits from raw and prepends the
// default country code when the number has exactly the domestic
// significant-digit length and lacks the prefix. Numbers already carrying the
// prefix pass through unchanged.
func NormalizePhone(raw, countryCode string, domesticDigits int) (string, error) {
	var sb strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()
	if digits == "" {
		return "", ErrNoDestination
	}
	if len(digits) == domesticDigits && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits, nil
}

// destination picks the contact's raw number: the Phone field first, then the
// conventional phone/number columns.
func (c Contact) destination() string {
	if c.Phone != "" {
		return c.Phone
	}
	for _, key := range []string{"phone", "number"} {
		if v, ok := c.Fields[key]; ok && v != "" {
			return v
		}
	}
	return ""
}
