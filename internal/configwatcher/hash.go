package configwatcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// structuralHash renders v with fmt's %#v verb and hashes it, giving a
// cheap idempotence check: identical parsed configuration produces an
// identical hash, so a reconcile that changes nothing observable can skip
// the install-and-emit-event path.
func structuralHash(v any) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%#v", v)))
	return hex.EncodeToString(sum[:])
}
