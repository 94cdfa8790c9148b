package upstream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Sign computes the vendor request signature: base64-encoded HMAC-SHA256 of
// "{timestamp}.{path}.{paramString}" under the shared secret. The timestamp
// is millisecond Unix time and must be freshly generated per request; the
// vendor rejects stale ones.
func Sign(secret, timestamp, path, paramString string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s.%s", timestamp, path, paramString)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
