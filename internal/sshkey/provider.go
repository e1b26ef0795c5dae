// Package sshkey supplies the SSH identity injected into instances at
// creation time.
package sshkey

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyProvider supplies the host's SSH identity for guest access. The
// factory passes the provider through to VM handles opaquely.
type KeyProvider interface {
	// PublicKeyAsAuthorizedKey returns the public key in authorized_keys
	// line format, without trailing newline.
	PublicKeyAsAuthorizedKey() (string, error)

	// Signer returns the private key for establishing SSH sessions.
	Signer() (ssh.Signer, error)
}

// FileKeyProvider reads the identity from a PEM-encoded private key file.
// The key is parsed lazily and cached.
type FileKeyProvider struct {
	path   string
	signer ssh.Signer
}

// NewFileKeyProvider returns a provider backed by the private key at path.
func NewFileKeyProvider(path string) *FileKeyProvider {
	return &FileKeyProvider{path: path}
}

// Signer implements KeyProvider.
func (p *FileKeyProvider) Signer() (ssh.Signer, error) {
	if p.signer != nil {
		return p.signer, nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH private key %s: %w", p.path, err)
	}

	p.signer = signer
	return signer, nil
}

// PublicKeyAsAuthorizedKey implements KeyProvider.
func (p *FileKeyProvider) PublicKeyAsAuthorizedKey() (string, error) {
	signer, err := p.Signer()
	if err != nil {
		return "", err
	}
	line := ssh.MarshalAuthorizedKey(signer.PublicKey())
	return strings.TrimSuffix(string(line), "\n"), nil
}

// StaticKeyProvider serves a pre-parsed signer. Useful for tests and for
// callers that manage key material themselves.
type StaticKeyProvider struct {
	Key ssh.Signer
}

// Signer implements KeyProvider.
func (p *StaticKeyProvider) Signer() (ssh.Signer, error) {
	if p.Key == nil {
		return nil, fmt.Errorf("no key configured")
	}
	return p.Key, nil
}

// PublicKeyAsAuthorizedKey implements KeyProvider.
func (p *StaticKeyProvider) PublicKeyAsAuthorizedKey() (string, error) {
	if p.Key == nil {
		return "", fmt.Errorf("no key configured")
	}
	line := ssh.MarshalAuthorizedKey(p.Key.PublicKey())
	return strings.TrimSuffix(string(line), "\n"), nil
}
