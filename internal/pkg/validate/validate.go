package validate

import (
	"regexp"
	"strings"
)

var (
	phonePattern      = regexp.MustCompile(`^\d{11}$`)
	inviteCodePattern = regexp.MustCompile(`^[A-Za-z0-9]{6}$`)
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Phone reports whether value is exactly eleven ASCII digits.
func Phone(value string) bool {
	return phonePattern.MatchString(value)
}

func InviteCode(value string) bool {
	return inviteCodePattern.MatchString(value)
}
