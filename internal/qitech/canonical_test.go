package qitech

import (
	"testing"
)

func TestStringToSignRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		fields SignatureFields
	}{
		{
			name: "json post",
			fields: SignatureFields{
				Method:      "POST",
				BodyDigest:  "9e107d9d372bb6826bd81d3542a419d6",
				ContentType: "application/json",
				Date:        "Mon, 02 Jan 2006 15:04:05 GMT",
				Endpoint:    "/account",
			},
		},
		{
			name: "get with query string",
			fields: SignatureFields{
				Method:      "GET",
				BodyDigest:  "",
				ContentType: "application/json",
				Date:        "Tue, 03 Jan 2006 10:00:00 GMT",
				Endpoint:    "/account?owner_document_number=12345678901&page=1&page_size=100",
			},
		},
		{
			name: "file upload with empty content type",
			fields: SignatureFields{
				Method:      "POST",
				BodyDigest:  "d41d8cd98f00b204e9800998ecf8427e",
				ContentType: "",
				Date:        "Wed, 04 Jan 2006 23:59:59 GMT",
				Endpoint:    "/upload",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := BuildStringToSign(tt.fields)
			got, err := ParseStringToSign(s)
			if err != nil {
				t.Fatalf("ParseStringToSign: %v", err)
			}
			if got != tt.fields {
				t.Errorf("round trip mismatch: got %+v, want %+v", got, tt.fields)
			}
		})
	}
}

func TestParseStringToSignRejectsWrongArity(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"too few fields", "POST\ndigest\napplication/json\ndate"},
		{"too many fields", "POST\ndigest\napplication/json\ndate\n/account\nextra"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStringToSign(tt.in); err == nil {
				t.Errorf("expected error for %q", tt.in)
			}
		})
	}
}

func TestBodyDigest(t *testing.T) {
	// Known MD5 vectors.
	if got := BodyDigest([]byte("")); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("empty digest = %s", got)
	}
	if got := BodyDigest([]byte("The quick brown fox jumps over the lazy dog")); got != "9e107d9d372bb6826bd81d3542a419d6" {
		t.Errorf("digest = %s", got)
	}
}
