package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the hex SHA-256 digest of content. Used for scope
// change detection and as the hash component of cache keys.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// BuildCacheKey builds "<namespace>:<schemaVersion>:<hex-sha256>" over the
// canonicalized inputs. Every input that influences the cached output must
// be listed; inputs are joined with an unambiguous separator before hashing
// so ("ab","c") and ("a","bc") never collide.
//
// The format is shared with other services reading the same Redis instance,
// so it must stay bit-exact.
func BuildCacheKey(namespace string, schemaVersion string, inputs ...string) string {
	canonical := strings.Join(inputs, "\x1f")
	return namespace + ":" + schemaVersion + ":" + Fingerprint([]byte(canonical))
}
