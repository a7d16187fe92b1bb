// Package keys loads and stores ed25519 keypairs in the JSON byte-array
// format used by Solana tooling, and renders public keys as base58 addresses.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
)

var ErrInvalidKeypair = errors.New("keys: invalid keypair")

type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

func Generate() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// Load reads a keypair file holding the 64-byte private key as a JSON array.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keypair load failed (%s): %w", path, err)
	}
	var raw []byte
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("keypair parse failed (%s): %w", path, err)
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte out of range in %s", ErrInvalidKeypair, path)
		}
		raw = append(raw, byte(v))
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(raw)
	return &Keypair{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil
}

func (k *Keypair) Save(path string) error {
	ints := make([]int, len(k.Private))
	for i, b := range k.Private {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create keypair directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0600)
}

// LoadOrCreate loads the keypair at path, generating and saving a fresh one
// when the file does not exist.
func LoadOrCreate(path string) (*Keypair, bool, error) {
	kp, err := Load(path)
	if err == nil {
		return kp, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	kp, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := kp.Save(path); err != nil {
		return nil, false, err
	}
	return kp, true, nil
}

func (k *Keypair) Address() string {
	return Address(k.Public)
}

func Address(pub ed25519.PublicKey) string {
	return base58.Encode(pub)
}

func ParseAddress(addr string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid address %q: expected %d bytes, got %d", addr, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
