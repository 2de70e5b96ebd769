package serviceuser

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gerrit-tools/serviceuser-cli/internal/gerrit"
)

const (
	usersPath  = "/config/server/serviceuser~serviceusers"
	configPath = "/config/server/serviceuser~config/"
)

// Capabilities fetches the caller's capability set.
func Capabilities(ctx context.Context, c *gerrit.Client) (CapabilityInfo, error) {
	var caps CapabilityInfo
	if err := c.Get(ctx, "/accounts/self/capabilities/", &caps); err != nil {
		return nil, err
	}
	return caps, nil
}

// PluginConfig fetches the plugin's server-wide configuration.
func PluginConfig(ctx context.Context, c *gerrit.Client) (*ConfigInfo, error) {
	var cfg ConfigInfo
	if err := c.Get(ctx, configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List fetches all service users, keyed by username.
func List(ctx context.Context, c *gerrit.Client) (map[string]ServiceUserInfo, error) {
	var users map[string]ServiceUserInfo
	if err := c.Get(ctx, usersPath+"/", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Get fetches a single service user by account id or username.
func Get(ctx context.Context, c *gerrit.Client, id string) (*ServiceUserInfo, error) {
	var user ServiceUserInfo
	if err := c.Get(ctx, fmt.Sprintf("%s/%s", usersPath, url.PathEscape(id)), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// createInput is the creation request body. The username rides in the path.
type createInput struct {
	SSHKey string `json:"ssh_key"`
	Email  string `json:"email,omitempty"`
}

// Create creates a new service user and returns the server's account record.
// Key and email are trimmed before submission.
func Create(ctx context.Context, c *gerrit.Client, username, sshKey, email string) (*ServiceUserInfo, error) {
	body := createInput{
		SSHKey: strings.TrimSpace(sshKey),
		Email:  strings.TrimSpace(email),
	}
	var user ServiceUserInfo
	err := c.Post(ctx, fmt.Sprintf("%s/%s", usersPath, url.PathEscape(username)), body, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Activate sets the account active.
func Activate(ctx context.Context, c *gerrit.Client, id string) error {
	return c.Put(ctx, fmt.Sprintf("%s/%s/active", usersPath, url.PathEscape(id)), nil, nil)
}

// Deactivate sets the account inactive.
func Deactivate(ctx context.Context, c *gerrit.Client, id string) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%s/active", usersPath, url.PathEscape(id)))
}

// SetName updates the account's full name.
func SetName(ctx context.Context, c *gerrit.Client, id, name string) error {
	body := map[string]string{"name": name}
	return c.Put(ctx, fmt.Sprintf("%s/%s/name", usersPath, url.PathEscape(id)), body, nil)
}

// SetEmail updates the account's email address.
func SetEmail(ctx context.Context, c *gerrit.Client, id, email string) error {
	body := map[string]string{"email": email}
	return c.Put(ctx, fmt.Sprintf("%s/%s/email", usersPath, url.PathEscape(id)), body, nil)
}

// SetOwner assigns the owner group. An empty group clears the owner instead.
func SetOwner(ctx context.Context, c *gerrit.Client, id, group string) error {
	if group == "" {
		return DeleteOwner(ctx, c, id)
	}
	body := map[string]string{"group": group}
	return c.Put(ctx, fmt.Sprintf("%s/%s/owner", usersPath, url.PathEscape(id)), body, nil)
}

// DeleteOwner clears the owner group.
func DeleteOwner(ctx context.Context, c *gerrit.Client, id string) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%s/owner", usersPath, url.PathEscape(id)))
}

// SSHKeys fetches the account's SSH keys. A missing or empty response yields
// an empty collection, never nil dereferences downstream.
func SSHKeys(ctx context.Context, c *gerrit.Client, id string) ([]SSHKeyInfo, error) {
	var keys []SSHKeyInfo
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/sshkeys", usersPath, url.PathEscape(id)), &keys); err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []SSHKeyInfo{}
	}
	return keys, nil
}

// AddSSHKey posts the trimmed key material as plain text and returns the
// stored key record with its server-assigned sequence number and validity.
func AddSSHKey(ctx context.Context, c *gerrit.Client, id, key string) (*SSHKeyInfo, error) {
	var stored SSHKeyInfo
	err := c.PostText(ctx, fmt.Sprintf("%s/%s/sshkeys", usersPath, url.PathEscape(id)), strings.TrimSpace(key), &stored)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteSSHKey removes one key by its sequence number.
func DeleteSSHKey(ctx context.Context, c *gerrit.Client, id string, seq int) error {
	return c.Delete(ctx, fmt.Sprintf("%s/%s/sshkeys/%d", usersPath, url.PathEscape(id), seq))
}

// GenerateHTTPPassword asks the server to generate a new HTTP password and
// returns the plaintext. This is the only time the password is ever exposed.
func GenerateHTTPPassword(ctx context.Context, c *gerrit.Client, id string) (string, error) {
	body := map[string]bool{"generate": true}
	var password string
	err := c.Put(ctx, fmt.Sprintf("/accounts/%s/password.http", url.PathEscape(id)), body, &password)
	if err != nil {
		return "", err
	}
	return password, nil
}

// DeleteHTTPPassword removes the account's HTTP password.
func DeleteHTTPPassword(ctx context.Context, c *gerrit.Client, id string) error {
	return c.Delete(ctx, fmt.Sprintf("/accounts/%s/password.http", url.PathEscape(id)))
}

// suggestLimit caps owner type-ahead results.
const suggestLimit = 10

// SuggestGroups queries the group search endpoint for owner candidates and
// returns the matching group names in sorted order plus the full records.
func SuggestGroups(ctx context.Context, c *gerrit.Client, query string) ([]string, map[string]GroupInfo, error) {
	var groups map[string]GroupInfo
	path := fmt.Sprintf("/groups/?n=%d&suggest=%s", suggestLimit, url.QueryEscape(query))
	if err := c.Get(ctx, path, &groups); err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups, nil
}
