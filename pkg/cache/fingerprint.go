package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint computes a stable hash of a canonicalized URL plus
// transform options, used as the second half of a cache Key.
func Fingerprint(canonicalURL string, includeMetadata, skipNoiseRemoval bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%t|%t", canonicalURL, includeMetadata, skipNoiseRemoval)))
	return hex.EncodeToString(sum[:])
}

// ResourceURI builds the superfetch://cache/<namespace>/<fingerprint>
// resource link URI for a cache entry.
func ResourceURI(key Key) string {
	return "superfetch://cache/" + key.Namespace + "/" + key.Fingerprint
}
