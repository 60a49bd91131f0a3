// Package document handles Brazilian tax-id (CPF/CNPJ) normalization.
// Documents are always stored and looked up digits-only; masking is applied
// only at the provider boundary.
package document

import (
	"fmt"
	"strings"
)

// PersonType is derived from the document length.
type PersonType string

const (
	Natural PersonType = "natural"
	Legal   PersonType = "legal"
)

// Normalize strips every non-digit character from a document number.
func Normalize(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Classify returns the person type for a normalized document: 11 digits is
// a CPF (natural person), 14 a CNPJ (legal person). Check digits are
// verified; repdigit sequences like 11111111111 are invalid even though
// their check digits work out.
func Classify(doc string) (PersonType, error) {
	switch len(doc) {
	case 11:
		if repdigit(doc) || !checkDigitsValid(doc, cpfFirstWeights, cpfSecondWeights) {
			return "", fmt.Errorf("invalid CPF check digits")
		}
		return Natural, nil
	case 14:
		if repdigit(doc) || !checkDigitsValid(doc, cnpjFirstWeights, cnpjSecondWeights) {
			return "", fmt.Errorf("invalid CNPJ check digits")
		}
		return Legal, nil
	default:
		return "", fmt.Errorf("document number has %d digits, want 11 or 14", len(doc))
	}
}

var (
	cpfFirstWeights   = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfSecondWeights  = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

func checkDigitsValid(doc string, first, second []int) bool {
	return doc[len(doc)-2] == checkDigit(doc, first) &&
		doc[len(doc)-1] == checkDigit(doc, second)
}

func checkDigit(doc string, weights []int) byte {
	sum := 0
	for i, w := range weights {
		sum += int(doc[i]-'0') * w
	}
	d := 11 - sum%11
	if d >= 10 {
		d = 0
	}
	return byte('0' + d)
}

func repdigit(doc string) bool {
	for i := 1; i < len(doc); i++ {
		if doc[i] != doc[0] {
			return false
		}
	}
	return true
}

// Mask formats a normalized document in the provider's punctuated format
// (000.000.000-00 for CPF, 00.000.000/0000-00 for CNPJ).
func Mask(doc string) string {
	switch len(doc) {
	case 11:
		return fmt.Sprintf("%s.%s.%s-%s", doc[0:3], doc[3:6], doc[6:9], doc[9:11])
	case 14:
		return fmt.Sprintf("%s.%s.%s/%s-%s", doc[0:2], doc[2:5], doc[5:8], doc[8:12], doc[12:14])
	default:
		return doc
	}
}
