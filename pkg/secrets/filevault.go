package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for deriving the vault key from the device key file.
// These follow the RFC 9106 low-memory recommendation; the input already has
// high entropy so the derivation mostly serves domain separation.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keyLength    = 32
	saltLength   = 16
)

// FileVault stores secrets in a single JSON file, each value encrypted with
// AES-256-GCM. The key is derived from a device key file (created with random
// content on first use) via argon2id with a per-vault salt.
type FileVault struct {
	mu        sync.Mutex
	path      string
	keyPath   string
	key       []byte
	loaded    bool
	salt      []byte
	ciphertxt map[string]string // key -> base64(nonce || sealed)
}

// NewFileVault creates a vault persisted at path, keyed by the device key
// file at keyPath. Neither file needs to exist yet.
func NewFileVault(path, keyPath string) *FileVault {
	return &FileVault{
		path:      path,
		keyPath:   keyPath,
		ciphertxt: make(map[string]string),
	}
}

type vaultFile struct {
	Salt    string            `json:"salt"`
	Secrets map[string]string `json:"secrets"`
}

// load hydrates the vault file and derives the AES key on first use.
func (v *FileVault) load() error {
	if v.loaded {
		return nil
	}

	data, err := os.ReadFile(v.path)
	switch {
	case err == nil:
		var f vaultFile
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("secrets: corrupt vault file: %w", err)
		}
		v.salt, err = base64.RawStdEncoding.DecodeString(f.Salt)
		if err != nil {
			return fmt.Errorf("secrets: corrupt vault salt: %w", err)
		}
		if f.Secrets != nil {
			v.ciphertxt = f.Secrets
		}
	case errors.Is(err, os.ErrNotExist):
		v.salt = make([]byte, saltLength)
		if _, err := rand.Read(v.salt); err != nil {
			return err
		}
	default:
		return err
	}

	keyMaterial, err := v.loadKeyMaterial()
	if err != nil {
		return err
	}

	v.key = argon2.IDKey(keyMaterial, v.salt, argonTime, argonMemory, argonThreads, keyLength)
	v.loaded = true
	return nil
}

// loadKeyMaterial reads the device key file, generating it with random
// content on first use.
func (v *FileVault) loadKeyMaterial() ([]byte, error) {
	data, err := os.ReadFile(v.keyPath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(v.keyPath), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(v.keyPath, material, 0o600); err != nil {
		return nil, err
	}
	return material, nil
}

func (v *FileVault) persist() error {
	f := vaultFile{
		Salt:    base64.RawStdEncoding.EncodeToString(v.salt),
		Secrets: v.ciphertxt,
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(v.path, data, 0o600)
}

func (v *FileVault) GetSecret(_ context.Context, key string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.load(); err != nil {
		return "", err
	}

	sealed, ok := v.ciphertxt[key]
	if !ok {
		return "", ErrNotFound
	}
	return v.open(sealed)
}

func (v *FileVault) SetSecret(_ context.Context, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.load(); err != nil {
		return err
	}

	sealed, err := v.seal(value)
	if err != nil {
		return err
	}
	v.ciphertxt[key] = sealed
	return v.persist()
}

func (v *FileVault) RemoveSecret(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.load(); err != nil {
		return err
	}

	if _, ok := v.ciphertxt[key]; !ok {
		return nil
	}
	delete(v.ciphertxt, key)
	return v.persist()
}

// seal encrypts plaintext as base64(nonce || ciphertext || tag).
func (v *FileVault) seal(plaintext string) (string, error) {
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	out := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(out), nil
}

// open reverses seal.
func (v *FileVault) open(sealed string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("secrets: corrupt secret: %w", err)
	}

	gcm, err := v.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("secrets: ciphertext too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decryption failed: %w", err)
	}
	return string(plaintext), nil
}

func (v *FileVault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
