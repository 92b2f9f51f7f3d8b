package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"golang.org/x/crypto/chacha20poly1305"
	"sort"
)

// CipherFactory creates an AEAD from a raw key
type CipherFactory func(key []byte) (cipher.AEAD, error)

// cipherFactories are all supported ciphers by name
var cipherFactories = map[string]CipherFactory{
	"aes-gcm": func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	},
	"chacha20poly1305":  chacha20poly1305.New,
	"xchacha20poly1305": chacha20poly1305.NewX,
}

// Ciphers returns the names of all supported ciphers
func Ciphers() []string {
	names := make([]string, 0, len(cipherFactories))
	for name := range cipherFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupCipher returns the factory registered under name
func LookupCipher(name string) (CipherFactory, error) {
	f, ok := cipherFactories[name]
	if !ok {
		return nil, fmt.Errorf("unknown cipher %q (expected one of %v)", name, Ciphers())
	}
	return f, nil
}

// NewAEAD creates the AEAD for a cipher name and a hex encoded key.
// An empty name means "no encryption" and returns a nil AEAD.
func NewAEAD(name, hexKey string) (cipher.AEAD, error) {
	if name == "" {
		return nil, nil
	}

	factory, err := LookupCipher(name)
	if err != nil {
		return nil, err
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("key for cipher %s is not valid hex: %w", name, err)
	}

	aead, err := factory(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher %s: %w", name, err)
	}
	return aead, nil
}
