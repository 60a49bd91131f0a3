package qitech

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer produces and decodes the ES512 compact tokens that carry the
// provider protocol's signed payloads.
type Signer struct {
	apiKey     string
	privateKey *ecdsa.PrivateKey

	// Provider's published public key. When set, Decode verifies token
	// signatures; when nil the token is parsed unverified, which matches
	// the legacy trust model of relying on the API-key and string-to-sign
	// cross-checks alone.
	providerKey *ecdsa.PublicKey
}

// NewSigner builds a Signer from a PEM-encoded EC private key, optionally
// passphrase-protected, and an optional PEM-encoded provider public key.
func NewSigner(apiKey string, privateKeyPEM []byte, passphrase string, providerKeyPEM []byte) (*Signer, error) {
	priv, err := parseECPrivateKey(privateKeyPEM, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	s := &Signer{apiKey: apiKey, privateKey: priv}

	if len(providerKeyPEM) > 0 {
		pub, err := parseECPublicKey(providerKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to load provider public key: %w", err)
		}
		s.providerKey = pub
	}

	return s, nil
}

// APIKey returns the client API key this signer signs on behalf of.
func (s *Signer) APIKey() string { return s.apiKey }

// Sign produces an ES512 compact token over the given claims.
func (s *Signer) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES512, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// SignHeader produces the bearer credential token binding the API key to
// the canonical string-to-sign.
func (s *Signer) SignHeader(stringToSign string) (string, error) {
	return s.Sign(jwt.MapClaims{
		"sub":       s.apiKey,
		"signature": stringToSign,
	})
}

// Decode extracts the claims from a compact token. With a provider public
// key configured the ES512 signature is verified and a forged token is
// rejected; without one the claims are parsed unverified.
func (s *Signer) Decode(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}

	if s.providerKey != nil {
		_, err := jwt.ParseWithClaims(tokenString, claims,
			func(t *jwt.Token) (any, error) { return s.providerKey, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodES512.Alg()}),
		)
		if err != nil {
			return nil, fmt.Errorf("token verification failed: %w", err)
		}
		return claims, nil
	}

	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

func parseECPrivateKey(pemBytes []byte, passphrase string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) {
		if passphrase == "" {
			return nil, fmt.Errorf("private key is encrypted but no passphrase was provided")
		}
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt private key: %w", err)
		}
		der = decrypted
	}

	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}

	// PKCS#8 fallback
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EC private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not an EC key")
	}
	return key, nil
}

func parseECPublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an EC key")
	}
	return pub, nil
}
