package serviceuser

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ParsedKey is the locally decoded form of public key material, used to
// pre-validate keys and to show algorithm/fingerprint details without a
// server round-trip.
type ParsedKey struct {
	Algorithm   string
	Comment     string
	Fingerprint string
}

// ParseKey decodes authorized_keys-format public key material.
func ParseKey(material string) (*ParsedKey, error) {
	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.TrimSpace(material)))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	return &ParsedKey{
		Algorithm:   pub.Type(),
		Comment:     comment,
		Fingerprint: ssh.FingerprintSHA256(pub),
	}, nil
}
