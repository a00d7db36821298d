// Package secrets holds the HMAC client keys and verifies request
// signatures. A request is signed with
//
//	hex(HMAC-SHA1(secret, method || path || body))
//
// where the secret is selected by the client's public key header.
package secrets

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"os"
	"sync"

	yaml "gopkg.in/yaml.v2"
)

// Keystore maps client public keys to their shared secrets. Lookups and
// updates may run concurrently.
type Keystore struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewKeystore creates a keystore from an initial key set.
func NewKeystore(keys map[string]string) *Keystore {
	ks := &Keystore{keys: make(map[string]string, len(keys))}
	for pub, secret := range keys {
		ks.keys[pub] = secret
	}

	return ks
}

// LoadKeystore reads a YAML document mapping public keys to secrets.
func LoadKeystore(path string) (*Keystore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var keys map[string]string
	if err := yaml.Unmarshal(b, &keys); err != nil {
		return nil, err
	}

	return NewKeystore(keys), nil
}

// Set stores or replaces the secret for a public key.
func (ks *Keystore) Set(pub, secret string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[pub] = secret
}

// Lookup returns the secret registered for a public key.
func (ks *Keystore) Lookup(pub string) (string, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	secret, ok := ks.keys[pub]
	return secret, ok
}

// Sign computes the hex signature over method || path || body.
func Sign(secret, method, path string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a request signature for the given public key. Unknown keys
// and mismatched signatures both fail; comparison is constant time.
func (ks *Keystore) Verify(pub, signature, method, path string, body []byte) bool {
	secret, ok := ks.Lookup(pub)
	if !ok {
		return false
	}

	expected := Sign(secret, method, path, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
