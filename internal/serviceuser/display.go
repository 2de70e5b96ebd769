package serviceuser

import "strconv"

// NotFound is the placeholder shown when a record or field is absent.
const NotFound = "Not Found"

// StateLabel returns the activation label for an account.
func StateLabel(u *ServiceUserInfo) string {
	if u == nil {
		return NotFound
	}
	if u.Inactive {
		return "Inactive"
	}
	return "Active"
}

// CreatorLabel returns the display string for the creating account: the
// creator's username when present, else the numeric account id unless it is
// the -1 sentinel.
func CreatorLabel(u *ServiceUserInfo) string {
	if u == nil || u.CreatedBy == nil {
		return NotFound
	}
	if u.CreatedBy.Username != "" {
		return u.CreatedBy.Username
	}
	if u.CreatedBy.AccountID != -1 {
		return strconv.Itoa(u.CreatedBy.AccountID)
	}
	return NotFound
}

// OwnerLabel returns the owner group's name, or the not-found placeholder for
// owner-less accounts.
func OwnerLabel(u *ServiceUserInfo) string {
	if u == nil || u.Owner == nil {
		return NotFound
	}
	return u.Owner.Name
}
