package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// lightweight per-user secret store (file, 0600) with AES-GCM obfuscation.
// Not a replacement for OS keychains but avoids plain-text credentials.

const fileName = "secure.json"

type secretFile struct {
	// environment -> key -> base64(ciphertext of JSON value)
	Values map[string]map[string]string `json:"values"`
}

// Store holds credentials and linked-item state for one provider
// environment. Mutations stay in memory until Flush.
type Store struct {
	path        string
	environment string
	file        secretFile
	dirty       bool
}

// Open loads the per-user secret file, creating an empty store when none
// exists yet.
func Open(environment string) (*Store, error) {
	path, err := defaultPath()
	if err != nil {
		return nil, err
	}
	return OpenFile(path, environment)
}

func OpenFile(path, environment string) (*Store, error) {
	environment = norm(environment)
	if environment == "" {
		return nil, fmt.Errorf("environment required")
	}
	sf, err := load(path)
	if err != nil {
		return nil, err
	}
	if sf.Values == nil {
		sf.Values = map[string]map[string]string{}
	}
	return &Store{path: path, environment: environment, file: sf}, nil
}

// Get decodes the value stored under key into out. The second return is
// false when the key is absent.
func (s *Store) Get(key string, out any) (bool, error) {
	scope := s.file.Values[s.environment]
	enc, ok := scope[norm(key)]
	if !ok {
		return false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return false, err
	}
	plain, err := decrypt(raw)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return false, err
	}
	return true, nil
}

// GetString is Get for plain string values, returning "" when absent.
func (s *Store) GetString(key string) (string, error) {
	var v string
	if _, err := s.Get(key, &v); err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) Set(key string, v any) error {
	key = norm(key)
	if key == "" {
		return fmt.Errorf("key required")
	}
	plain, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ct, err := encrypt(plain)
	if err != nil {
		return err
	}
	scope := s.file.Values[s.environment]
	if scope == nil {
		scope = map[string]string{}
		s.file.Values[s.environment] = scope
	}
	scope[key] = base64.StdEncoding.EncodeToString(ct)
	s.dirty = true
	return nil
}

func (s *Store) Delete(key string) {
	if scope := s.file.Values[s.environment]; scope != nil {
		if _, ok := scope[norm(key)]; ok {
			delete(scope, norm(key))
			s.dirty = true
		}
	}
}

// Flush writes pending mutations back to disk. A clean store is a no-op.
func (s *Store) Flush() error {
	if !s.dirty {
		return nil
	}
	if err := save(s.path, s.file); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func defaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "txnql")
	if err := os.MkdirAll(dir, 0o700); err != nil { // restrict directory
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

func load(path string) (secretFile, error) {
	var sf secretFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return secretFile{}, nil
		}
		return sf, err
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, err
	}
	return sf, nil
}

func save(path string, sf secretFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func norm(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func masterKey() ([]byte, error) {
	user := os.Getenv("USER")
	base := fmt.Sprintf("txnql-%s-%s", runtime.GOOS, user)
	hash := sha256.Sum256([]byte(base))
	return hash[:], nil
}

func encrypt(plain []byte) ([]byte, error) {
	key, err := masterKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	key, err := masterKey()
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:gcm.NonceSize()]
	body := ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
