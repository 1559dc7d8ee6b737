package artifact

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/ssh"
)

// KeyHashAlgorithm selects the password/key digest a device's ZTP config
// template expects, per §4.3's enable-secret handling note.
type KeyHashAlgorithm int

const (
	// HashMD5 matches classic Cisco IOS "enable secret 5" digests.
	HashMD5 KeyHashAlgorithm = iota
	// HashSHA256 matches Cisco ASA's "enable password" digest.
	HashSHA256
	// HashFingerprint renders an SSH public key as its base64 SHA-256
	// fingerprint, for devices whose config template takes a key
	// fingerprint rather than a password hash.
	HashFingerprint
)

// HashSecret applies algo to secret and returns the digest in the text
// form the device's config template expects.
func HashSecret(algo KeyHashAlgorithm, secret string) string {
	switch algo {
	case HashMD5:
		sum := md5.Sum([]byte(secret))
		return hex.EncodeToString(sum[:])
	case HashSHA256:
		sum := sha256.Sum256([]byte(secret))
		return hex.EncodeToString(sum[:])
	default:
		return secret
	}
}

// FingerprintAuthorizedKey parses an authorized_keys-format line and
// returns its "SHA256:"-prefixed base64 fingerprint (the key material
// itself is not returned).
func FingerprintAuthorizedKey(line string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(pub.Marshal())
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:]), nil
}
