package cloudinary

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// unsigned lists upload parameters excluded from the signature.
var unsigned = map[string]bool{
	"file":          true,
	"api_key":       true,
	"resource_type": true,
	"cloud_name":    true,
}

// sign computes the upload signature: the SHA-1 hex digest of the
// remaining non-empty parameters sorted by name, joined as k=v with "&",
// followed by the API secret.
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" && !unsigned[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
