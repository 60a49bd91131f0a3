package qitech

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// signatureFieldCount is the number of newline-joined fields in the
// canonical string-to-sign: method, body digest, content type, HTTP date
// and endpoint path.
const signatureFieldCount = 5

// SignatureFields are the positional components of the canonical
// string-to-sign exchanged with the banking provider.
type SignatureFields struct {
	Method      string
	BodyDigest  string
	ContentType string
	Date        string
	Endpoint    string
}

// BuildStringToSign joins the five canonical fields with newlines. Callers
// must not pass fields containing embedded newlines.
func BuildStringToSign(f SignatureFields) string {
	return strings.Join([]string{
		f.Method,
		f.BodyDigest,
		f.ContentType,
		f.Date,
		f.Endpoint,
	}, "\n")
}

// ParseStringToSign splits a decoded signature string back into its five
// positional fields.
func ParseStringToSign(s string) (SignatureFields, error) {
	parts := strings.Split(s, "\n")
	if len(parts) != signatureFieldCount {
		return SignatureFields{}, fmt.Errorf("signature string has %d fields, want %d", len(parts), signatureFieldCount)
	}
	return SignatureFields{
		Method:      parts[0],
		BodyDigest:  parts[1],
		ContentType: parts[2],
		Date:        parts[3],
		Endpoint:    parts[4],
	}, nil
}

// BodyDigest returns the hex MD5 digest of the exact bytes that will be
// transmitted. For JSON bodies the digest is taken over the signed body
// token, not the raw JSON, so it binds to what is actually sent.
func BodyDigest(payload []byte) string {
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}
