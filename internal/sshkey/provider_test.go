package sshkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func writeTestKey(t *testing.T) (string, ssh.Signer) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	return path, signer
}

func TestFileKeyProvider(t *testing.T) {
	path, want := writeTestKey(t)

	p := NewFileKeyProvider(path)

	signer, err := p.Signer()
	if err != nil {
		t.Fatalf("Signer() error = %v", err)
	}
	if got := signer.PublicKey().Type(); got != want.PublicKey().Type() {
		t.Errorf("key type = %q, want %q", got, want.PublicKey().Type())
	}

	line, err := p.PublicKeyAsAuthorizedKey()
	if err != nil {
		t.Fatalf("PublicKeyAsAuthorizedKey() error = %v", err)
	}
	if !strings.HasPrefix(line, "ssh-ed25519 ") {
		t.Errorf("authorized key line = %q, want ssh-ed25519 prefix", line)
	}
	if strings.HasSuffix(line, "\n") {
		t.Errorf("authorized key line has trailing newline")
	}

	wantLine := strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(want.PublicKey())), "\n")
	if line != wantLine {
		t.Errorf("authorized key line = %q, want %q", line, wantLine)
	}
}

func TestFileKeyProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		errMsg string
	}{
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope")
			},
			errMsg: "failed to read SSH private key",
		},
		{
			name: "invalid key data",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "garbage")
				if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
					t.Fatalf("failed to write file: %v", err)
				}
				return path
			},
			errMsg: "failed to parse SSH private key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFileKeyProvider(tt.setup(t))
			if _, err := p.Signer(); err == nil {
				t.Fatalf("Signer() error = nil, want error")
			} else if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Signer() error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestStaticKeyProvider(t *testing.T) {
	_, signer := writeTestKey(t)

	p := &StaticKeyProvider{Key: signer}
	got, err := p.Signer()
	if err != nil {
		t.Fatalf("Signer() error = %v", err)
	}
	if got != signer {
		t.Errorf("Signer() returned unexpected signer")
	}

	line, err := p.PublicKeyAsAuthorizedKey()
	if err != nil {
		t.Fatalf("PublicKeyAsAuthorizedKey() error = %v", err)
	}
	if !strings.HasPrefix(line, "ssh-ed25519 ") {
		t.Errorf("authorized key line = %q, want ssh-ed25519 prefix", line)
	}

	empty := &StaticKeyProvider{}
	if _, err := empty.Signer(); err == nil {
		t.Errorf("Signer() on empty provider error = nil, want error")
	}
	if _, err := empty.PublicKeyAsAuthorizedKey(); err == nil {
		t.Errorf("PublicKeyAsAuthorizedKey() on empty provider error = nil, want error")
	}
}
