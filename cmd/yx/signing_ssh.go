package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/justindra/yaks/pkg/storage"
)

// Snapshot signatures are "sshsig-v1:<sig-format>:<pubkey-b64>:<sig-b64>".
const snapshotSignaturePrefix = "sshsig-v1"

var errMalformedSignature = errors.New("malformed snapshot signature")

// newSSHCommitSigner loads the private key at keyPath ("~/" expanded) and
// returns a signer for snapshot commits plus the key's fingerprint.
func newSSHCommitSigner(keyPath string) (storage.CommitSigner, string, error) {
	path, err := expandUserPath(strings.TrimSpace(keyPath))
	if err != nil {
		return nil, "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", path, err)
	}

	pub := signer.PublicKey()
	pubB64 := base64.StdEncoding.EncodeToString(pub.Marshal())
	sign := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", fmt.Errorf("sign snapshot: %w", err)
		}
		return strings.Join([]string{
			snapshotSignaturePrefix,
			sig.Format,
			pubB64,
			base64.StdEncoding.EncodeToString(sig.Blob),
		}, ":"), nil
	}
	return sign, ssh.FingerprintSHA256(pub), nil
}

// parseSnapshotSignature splits an encoded signature into the embedded
// public key and the ssh signature.
func parseSnapshotSignature(encoded string) (ssh.PublicKey, *ssh.Signature, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 4 || parts[0] != snapshotSignaturePrefix {
		return nil, nil, errMalformedSignature
	}
	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: public key: %v", errMalformedSignature, err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: public key: %v", errMalformedSignature, err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: signature: %v", errMalformedSignature, err)
	}
	return pub, &ssh.Signature{Format: parts[1], Blob: blob}, nil
}

// verifySSHSignature checks that the signature was made over payload by
// the key it embeds.
func verifySSHSignature(payload []byte, encoded string) error {
	pub, sig, err := parseSnapshotSignature(encoded)
	if err != nil {
		return err
	}
	if err := pub.Verify(payload, sig); err != nil {
		return fmt.Errorf("bad signature from %s: %w", ssh.FingerprintSHA256(pub), err)
	}
	return nil
}

// signerFingerprint returns the fingerprint of the key embedded in an
// encoded signature, or "" when it cannot be parsed.
func signerFingerprint(encoded string) string {
	pub, _, err := parseSnapshotSignature(encoded)
	if err != nil {
		return ""
	}
	return ssh.FingerprintSHA256(pub)
}

func expandUserPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("signing key path is empty")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
