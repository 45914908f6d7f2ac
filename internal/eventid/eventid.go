// Package eventid derives stable deduplication identifiers for outbound
// events. The remote ingestion API merges duplicate reports of the same
// real-world action (e.g. one from a client pixel and one from this relay)
// when they carry the same event_id.
package eventid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Length is the number of hex characters in a generated identifier.
const Length = 16

// New returns the deduplication key for one logical event. The key is
// deterministic for identical inputs and collision-avoiding across distinct
// concurrent events, which is all the remote deduplication needs; it is not
// a security boundary.
func New(eventName string, eventTime int64, discriminator, clientIP string) string {
	seed := fmt.Sprintf("%s:%d:%s:%s", eventName, eventTime, discriminator, clientIP)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:Length]
}

// ContentsDiscriminator reduces a cart's content-id list to a single
// discriminator so that two different carts checked out in the same second
// from the same address still yield distinct keys.
func ContentsDiscriminator(contentIDs []string) string {
	sum := sha256.Sum256([]byte(strings.Join(contentIDs, ",")))
	return hex.EncodeToString(sum[:])
}
