package fs

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters for deriving the secretbox key from a passphrase
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	keySize      = 32
	saltSize     = 16
	nonceSize    = 24
	envelopeVers = 1
)

var errUnseal = errors.New("credentials file could not be unsealed")

// envelope is the on-disk format of a sealed credentials file
type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

func deriveKey(passphrase, salt []byte) (*[keySize]byte, error) {
	k, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	var key [keySize]byte
	copy(key[:], k)
	return &key, nil
}

func seal(plain, passphrase []byte) ([]byte, error) {
	env := envelope{Version: envelopeVers, Salt: make([]byte, saltSize)}
	if _, err := io.ReadFull(rand.Reader, env.Salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	key, err := deriveKey(passphrase, env.Salt)
	if err != nil {
		return nil, err
	}
	env.Nonce = nonce[:]
	env.Box = secretbox.Seal(nil, plain, &nonce, key)
	return json.Marshal(env)
}

func open(sealed, passphrase []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, errUnseal
	}
	if env.Version != envelopeVers || len(env.Salt) != saltSize || len(env.Nonce) != nonceSize {
		return nil, errUnseal
	}
	key, err := deriveKey(passphrase, env.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	plain, ok := secretbox.Open(nil, env.Box, &nonce, key)
	if !ok {
		return nil, errUnseal
	}
	return plain, nil
}
