// Package serviceuser provides the typed operations and records of the
// Gerrit serviceuser plugin REST API.
package serviceuser

import "encoding/json"

// AccountInfo is the subset of a Gerrit account record the plugin exposes.
// An empty Username means the server omitted the field.
type AccountInfo struct {
	AccountID int    `json:"_account_id"`
	Name      string `json:"name,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Inactive  bool   `json:"inactive,omitempty"`
}

// GroupInfo describes a Gerrit group, used for service user owners and
// owner suggestions.
type GroupInfo struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	GroupID int    `json:"group_id,omitempty"`
	URL     string `json:"url,omitempty"`
}

// ServiceUserInfo is a service user account with its creation metadata and
// optional owner group.
type ServiceUserInfo struct {
	AccountInfo
	CreatedBy *AccountInfo `json:"created_by,omitempty"`
	CreatedAt string       `json:"created_at,omitempty"`
	Owner     *GroupInfo   `json:"owner,omitempty"`
}

// ConfigInfo is the plugin's server-wide configuration. Immutable from the
// client's perspective; fetched once per screen activation.
type ConfigInfo struct {
	Info              string   `json:"info,omitempty"`
	OnSuccess         string   `json:"on_success,omitempty"`
	AllowEmail        bool     `json:"allow_email,omitempty"`
	AllowOwner        bool     `json:"allow_owner,omitempty"`
	AllowHTTPPassword bool     `json:"allow_http_password,omitempty"`
	BlockedNames      []string `json:"blocked_names,omitempty"`
}

// SSHKeyInfo is one SSH key of a service user. The sequence number is
// server-assigned and identifies the key for deletion.
type SSHKeyInfo struct {
	Seq          int    `json:"seq"`
	SSHPublicKey string `json:"ssh_public_key"`
	EncodedKey   string `json:"encoded_key,omitempty"`
	Algorithm    string `json:"algorithm,omitempty"`
	Comment      string `json:"comment,omitempty"`
	Valid        bool   `json:"valid"`
}

// Capability names checked by this client.
const (
	CapAdministrateServer = "administrateServer"
	CapCreateServiceUser  = "serviceuser-createServiceUser"
)

// CapabilityInfo is the caller's capability set. Gerrit reports a capability
// by the presence of its key; the value shape varies per capability.
type CapabilityInfo map[string]json.RawMessage

// Has reports whether the capability is granted.
func (c CapabilityInfo) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Permissions are the derived booleans the screens act on. Recomputed on
// every load, never persisted.
type Permissions struct {
	IsAdmin   bool
	CanCreate bool
}

// Permissions derives the permission flags from the capability set.
func (c CapabilityInfo) Permissions() Permissions {
	admin := c.Has(CapAdministrateServer)
	return Permissions{
		IsAdmin:   admin,
		CanCreate: admin || c.Has(CapCreateServiceUser),
	}
}

// AllowFlags are the per-feature flags of the detail screen: the config flag
// OR an admin override.
type AllowFlags struct {
	Email        bool
	Owner        bool
	HTTPPassword bool
}

// Merge combines the plugin config with the caller's permissions.
func Merge(cfg *ConfigInfo, perms Permissions) AllowFlags {
	if cfg == nil {
		return AllowFlags{Email: perms.IsAdmin, Owner: perms.IsAdmin, HTTPPassword: perms.IsAdmin}
	}
	return AllowFlags{
		Email:        cfg.AllowEmail || perms.IsAdmin,
		Owner:        cfg.AllowOwner || perms.IsAdmin,
		HTTPPassword: cfg.AllowHTTPPassword || perms.IsAdmin,
	}
}
