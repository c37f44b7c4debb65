package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "privacy_policy.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func expectedDigest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:12]
}

func TestVersionWithoutMarker(t *testing.T) {
	content := "# Privacy Policy\n\nWe only upload images with your consent.\n"
	src := NewSource(writePolicy(t, content), "")

	assert.Equal(t, "sha256:"+expectedDigest(content), src.Version())
}

func TestVersionWithEnglishMarker(t *testing.T) {
	content := "# Privacy Policy\n_Last updated: 2026-08-01_\n\nBody text.\n"
	src := NewSource(writePolicy(t, content), "")

	assert.Equal(t, "2026-08-01|sha256:"+expectedDigest(content), src.Version())
}

func TestVersionWithGermanMarker(t *testing.T) {
	content := "# Datenschutz\nZuletzt aktualisiert: 01.08.2026\n\nText.\n"
	src := NewSource(writePolicy(t, content), "")

	assert.Equal(t, "01.08.2026|sha256:"+expectedDigest(content), src.Version())
}

func TestMarkerOutsideHeaderIgnored(t *testing.T) {
	content := strings.Repeat("filler line\n", 40) + "Last updated: 2026-08-01\n"
	src := NewSource(writePolicy(t, content), "")

	assert.Equal(t, "sha256:"+expectedDigest(content), src.Version())
}

func TestUnreadableFileHashesEmptyText(t *testing.T) {
	src := NewSource(filepath.Join(t.TempDir(), "missing.md"), "")

	assert.Equal(t, "sha256:"+expectedDigest(""), src.Version())
}

func TestEditInvalidatesFingerprint(t *testing.T) {
	path := writePolicy(t, "original text\n")
	src := NewSource(path, "")
	before := src.Version()

	require.NoError(t, os.WriteFile(path, []byte("revised text\n"), 0o600))
	after := src.Version()

	assert.NotEqual(t, before, after, "any content edit must change the fingerprint")
}
