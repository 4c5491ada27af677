package main

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

func writeTestKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSSHSignAndVerify(t *testing.T) {
	sign, fingerprint, err := newSSHCommitSigner(writeTestKey(t))
	if err != nil {
		t.Fatalf("newSSHCommitSigner: %v", err)
	}
	payload := []byte("tree abc\n\nyx add a\n")
	sig, err := sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(sig, snapshotSignaturePrefix+":ssh-ed25519:") {
		t.Fatalf("signature = %q", sig)
	}
	if err := verifySSHSignature(payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := signerFingerprint(sig); got != fingerprint {
		t.Fatalf("fingerprint = %q, want %q", got, fingerprint)
	}
	if err := verifySSHSignature([]byte("tampered"), sig); err == nil {
		t.Fatal("expected tampered payload to fail verification")
	}
	if err := verifySSHSignature(payload, "sshsig-v1:only-two"); err == nil {
		t.Fatal("expected malformed signature to fail")
	}
}

func TestSSHSignerMissingKey(t *testing.T) {
	if _, _, err := newSSHCommitSigner(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for a missing key")
	}
	if _, _, err := newSSHCommitSigner("  "); err == nil {
		t.Fatal("expected error for an empty path")
	}
}

func TestSignedSnapshotsVerifyInLog(t *testing.T) {
	dir := newTestWorkspace(t)
	key := writeTestKey(t)

	cfgPath := filepath.Join(dir, ".git", "yaks", "config.toml")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	data = append([]byte("signing_key = \""+filepath.ToSlash(key)+"\"\n"), data...)
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	runCmd(t, newAddCmd(), "signed")
	if out := runCmd(t, newLogCmd(), "--verify"); !strings.Contains(out, "Signature: good SHA256:") {
		t.Fatalf("log = %q", out)
	}
}
