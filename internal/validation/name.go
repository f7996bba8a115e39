package validation

import "regexp"

// Capability and application name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: withdraw, account:read, banking-api, frontend-app
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var nameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidCapabilityName returns true if the capability name matches the allowed
// pattern. Matching elsewhere is case-sensitive string equality, so rejecting
// uppercase at the boundary removes a whole class of surprises.
func ValidCapabilityName(name string) bool {
	return nameRe.MatchString(name)
}

// ValidApplicationName applies the same rules to application names.
func ValidApplicationName(name string) bool {
	return nameRe.MatchString(name)
}
