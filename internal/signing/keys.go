// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package signing

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// KeyEncoding tags how key material was presented.
type KeyEncoding int

const (
	EncodingPEM KeyEncoding = iota
	EncodingDER
	EncodingRaw
)

var (
	ErrEmptyKey      = errors.New("empty key material")
	ErrNotEd25519    = errors.New("key is not ed25519")
	ErrMalformedKey  = errors.New("malformed key material")
	ErrUnknownFormat = errors.New("key is neither PEM nor base64")
)

// PublicKey is a parsed Ed25519 public key with its source encoding.
type PublicKey struct {
	Encoding KeyEncoding
	Key      ed25519.PublicKey
}

// PrivateKey is a parsed Ed25519 private key with its source encoding.
type PrivateKey struct {
	Encoding KeyEncoding
	Key      ed25519.PrivateKey
}

// ParsePublicKey accepts a PEM PUBLIC KEY block, base64 PKIX DER, or a
// raw base64 32-byte ed25519 key.
func ParsePublicKey(material string) (PublicKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return PublicKey{}, ErrEmptyKey
	}

	if strings.Contains(material, "-----BEGIN") {
		block, _ := pem.Decode([]byte(material))
		if block == nil {
			return PublicKey{}, fmt.Errorf("%w: no PEM block", ErrMalformedKey)
		}
		key, err := parsePKIX(block.Bytes)
		if err != nil {
			return PublicKey{}, err
		}
		return PublicKey{Encoding: EncodingPEM, Key: key}, nil
	}

	der, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return PublicKey{}, ErrUnknownFormat
	}
	if len(der) == ed25519.PublicKeySize {
		return PublicKey{Encoding: EncodingRaw, Key: ed25519.PublicKey(der)}, nil
	}
	key, err := parsePKIX(der)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{Encoding: EncodingDER, Key: key}, nil
}

// ParsePrivateKey accepts a PEM PRIVATE KEY block, base64 PKCS#8 DER,
// a raw base64 64-byte ed25519 key, or a raw base64 32-byte seed.
func ParsePrivateKey(material string) (PrivateKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return PrivateKey{}, ErrEmptyKey
	}

	if strings.Contains(material, "-----BEGIN") {
		block, _ := pem.Decode([]byte(material))
		if block == nil {
			return PrivateKey{}, fmt.Errorf("%w: no PEM block", ErrMalformedKey)
		}
		key, err := parsePKCS8(block.Bytes)
		if err != nil {
			return PrivateKey{}, err
		}
		return PrivateKey{Encoding: EncodingPEM, Key: key}, nil
	}

	der, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return PrivateKey{}, ErrUnknownFormat
	}
	switch len(der) {
	case ed25519.PrivateKeySize:
		return PrivateKey{Encoding: EncodingRaw, Key: ed25519.PrivateKey(der)}, nil
	case ed25519.SeedSize:
		return PrivateKey{Encoding: EncodingRaw, Key: ed25519.NewKeyFromSeed(der)}, nil
	}
	key, err := parsePKCS8(der)
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{Encoding: EncodingDER, Key: key}, nil
}

func parsePKIX(der []byte) (ed25519.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	return key, nil
}

func parsePKCS8(der []byte) (ed25519.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	return key, nil
}
