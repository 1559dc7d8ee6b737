package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSecretMD5(t *testing.T) {
	got := HashSecret(HashMD5, "cisco")
	require.Len(t, got, 32)
}

func TestHashSecretSHA256(t *testing.T) {
	got := HashSecret(HashSHA256, "cisco")
	require.Len(t, got, 64)
}

func TestFingerprintAuthorizedKey(t *testing.T) {
	_, err := FingerprintAuthorizedKey("not-a-valid-key")
	require.Error(t, err)
}
