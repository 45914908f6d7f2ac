// Package identity normalizes and one-way-hashes personally identifiable
// fields before they are attached to outbound events.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Conversions API user_data field keys.
const (
	FieldEmail      = "em"
	FieldFirstName  = "fn"
	FieldLastName   = "ln"
	FieldPhone      = "ph"
	FieldCity       = "ct"
	FieldState      = "st"
	FieldPostalCode = "zp"
	FieldCountry    = "country"
	FieldClientIP   = "client_ip_address"
	FieldUserAgent  = "client_user_agent"
	FieldClickID    = "fbc"
	FieldBrowserID  = "fbp"
)

// Hash returns the SHA-256 hex digest of value after lowercasing and
// trimming surrounding whitespace. Identical normalized inputs always
// produce the same digest.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}

// Digits strips everything but 0-9 from s. Phone numbers are reduced to
// digits before hashing.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UserData maps user_data field keys to hashed PII or raw context values.
type UserData map[string]string

// SetHashed stores the hash of value under key. Empty values are omitted,
// never hashed as empty strings.
func (u UserData) SetHashed(key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	u[key] = Hash(value)
}

// SetPhone reduces the number to digits and stores its hash. Numbers with
// no digits are omitted.
func (u UserData) SetPhone(number string) {
	digits := Digits(number)
	if digits == "" {
		return
	}
	u[FieldPhone] = Hash(digits)
}

// SetRaw stores value verbatim (IP addresses, user agents, click-id
// cookies). Empty values are omitted.
func (u UserData) SetRaw(key, value string) {
	if value == "" {
		return
	}
	u[key] = value
}

// HasSignal reports whether the mapping carries at least one identifying
// signal (client IP or user agent). Events without one are still sent but
// are of little use to the remote matcher.
func (u UserData) HasSignal() bool {
	return u[FieldClientIP] != "" || u[FieldUserAgent] != ""
}

// ClickIDFromFBCLID converts an fbclid URL parameter into the fbc cookie
// format the Conversions API expects: fb.1.<creation-unix-ms>.<fbclid>.
func ClickIDFromFBCLID(fbclid string, at time.Time) string {
	return fmt.Sprintf("fb.1.%d.%s", at.UnixMilli(), fbclid)
}
