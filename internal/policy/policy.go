// Package policy derives a stable version identifier from the governing
// privacy policy document. Any edit to the policy text changes the
// fingerprint, which in turn invalidates every stored consent without
// requiring a manual version bump.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// Markers recognized as a human-readable "last updated" label. The policy
// document is maintained in two locales, so both prefixes are scanned.
var updatedMarkers = []string{
	"Last updated:",
	"Zuletzt aktualisiert:",
}

// markerScanLines bounds the header scan; the label lives near the top of the
// document and body text must not be mistaken for it.
const markerScanLines = 40

// digestLength is the number of hex characters kept from the full SHA-256
// digest. 48 bits is plenty to distinguish policy revisions.
const digestLength = 12

// Source reads the policy document from disk and computes its fingerprint.
type Source struct {
	Path      string
	PublicURL string
}

// NewSource creates a policy source for the given document path.
func NewSource(path, publicURL string) *Source {
	return &Source{Path: path, PublicURL: publicURL}
}

// Version returns the current policy fingerprint. The format is
// "<marker>|sha256:<digest>" when an update marker is present in the
// document header, or "sha256:<digest>" otherwise. An unreadable document is
// treated as empty text; Version never fails.
func (s *Source) Version() string {
	text := safeReadText(s.Path)
	digest := shortDigest(text)

	if marker := scanUpdatedMarker(text); marker != "" {
		return marker + "|sha256:" + digest
	}
	return "sha256:" + digest
}

func safeReadText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func shortDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:digestLength]
}

func scanUpdatedMarker(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > markerScanLines {
		lines = lines[:markerScanLines]
	}
	for _, line := range lines {
		for _, marker := range updatedMarkers {
			idx := strings.Index(line, marker)
			if idx < 0 {
				continue
			}
			label := line[idx+len(marker):]
			label = strings.TrimSpace(label)
			label = strings.Trim(label, "_")
			return strings.TrimSpace(label)
		}
	}
	return ""
}
