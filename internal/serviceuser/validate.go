package serviceuser

import (
	"regexp"
	"strings"
)

// ValidUsername reports whether a username is acceptable for creation:
// non-empty after trimming.
func ValidUsername(username string) bool {
	return strings.TrimSpace(username) != ""
}

// ValidEmail reports whether an email is acceptable for creation: empty after
// trimming, or containing an "@".
func ValidEmail(email string) bool {
	trimmed := strings.TrimSpace(email)
	return trimmed == "" || strings.Contains(email, "@")
}

// ValidKey reports whether SSH key material is acceptable for submission:
// non-empty after trimming.
func ValidKey(key string) bool {
	return strings.TrimSpace(key) != ""
}

// CreateFormValid reports whether the create form may be submitted.
func CreateFormValid(username, email, key string) bool {
	return ValidUsername(username) && ValidEmail(email) && ValidKey(key)
}

// NameChanged reports whether the pending full name differs from the stored
// one. Full names carry no format rule.
func NameChanged(stored, edited string) bool {
	return edited != stored
}

// EmailChanged reports whether the pending email is a genuine change against
// the stored value. An emptied field counts as a change so the email can be
// cleared; a new value must contain "@". An account without a stored email
// only changes when a value with "@" is entered.
func EmailChanged(stored, edited string) bool {
	if stored == "" {
		return strings.Contains(edited, "@")
	}
	return edited != stored && (strings.Contains(edited, "@") || edited == "")
}

// OwnerValid reports whether the pending owner name resolves to one of the
// last-fetched suggestions. An unresolved name blocks save without surfacing
// an error.
func OwnerValid(owner string, suggestions []string) bool {
	for _, s := range suggestions {
		if s == owner {
			return true
		}
	}
	return false
}

// OwnerChanged reports whether the pending owner is a genuine change against
// the current owner label. Clearing the field is a change (the owner is
// removed on save); any other value must match a cached suggestion.
func OwnerChanged(current, edited string, suggestions []string) bool {
	if edited == NotFound || edited == current {
		return false
	}
	if edited == "" {
		return true
	}
	return OwnerValid(edited, suggestions)
}

// PrefsChanged reports whether at least one editable field genuinely changed
// under the per-field policy, enabling save.
func PrefsChanged(u *ServiceUserInfo, fullName, email, owner string, suggestions []string) bool {
	if u == nil {
		return false
	}
	return NameChanged(u.Name, fullName) ||
		EmailChanged(u.Email, email) ||
		OwnerChanged(OwnerLabel(u), owner, suggestions)
}

// BlockedNameFilter rejects usernames the server is configured to block.
// Entries starting with "^" are regular expressions matched from the start of
// the name, entries ending with "*" block a prefix, everything else blocks
// the exact name. All matching is case-insensitive.
type BlockedNameFilter struct {
	exact    []string
	prefixes []string
	patterns []*regexp.Regexp
}

// NewBlockedNameFilter parses the blocked-name entries from the plugin
// config. Malformed regular expressions are ignored.
func NewBlockedNameFilter(entries []string) *BlockedNameFilter {
	f := &BlockedNameFilter{}
	for _, e := range entries {
		switch {
		case strings.HasPrefix(e, "^"):
			re, err := regexp.Compile("(?i)" + e)
			if err != nil {
				continue
			}
			f.patterns = append(f.patterns, re)
		case strings.HasSuffix(e, "*"):
			f.prefixes = append(f.prefixes, strings.ToLower(strings.TrimSuffix(e, "*")))
		default:
			f.exact = append(f.exact, strings.ToLower(e))
		}
	}
	return f
}

// Blocked reports whether the username is blocked.
func (f *BlockedNameFilter) Blocked(username string) bool {
	lower := strings.ToLower(username)
	for _, e := range f.exact {
		if lower == e {
			return true
		}
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, re := range f.patterns {
		if re.MatchString(username) {
			return true
		}
	}
	return false
}
