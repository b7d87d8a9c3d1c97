// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts the persisted credential file at rest with
// age (filippo.io/age) x25519 keys.
//
// Sealing is optional: when the configuration names an identity file,
// the credential store encrypts every write to that identity's public
// key and decrypts on read. The identity is generated once with
// "taskctl keygen" and lives in a 0600 file in the standard age
// identity format, so the age command line tool can read it too.
//
// Private keys and decrypted plaintext are returned in secret.Buffer
// values and never held as plain heap slices longer than a call.
package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/tasklist/lib/secret"
)

// Keypair is an age x25519 identity. Close releases the private key.
type Keypair struct {
	// PrivateKey is the AGE-SECRET-KEY-1... string. Never log it.
	PrivateKey *secret.Buffer

	// PublicKey is the age1... recipient string.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair creates a new x25519 identity.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating keypair: %w", err)
	}
	privateKey, err := secret.NewFromString(identity.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// WriteIdentityFile writes keypair to path in age identity file format
// with mode 0600. It refuses to overwrite an existing file.
func WriteIdentityFile(path string, keypair *Keypair, now time.Time) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("sealed: creating identity file: %w", err)
	}
	_, writeErr := fmt.Fprintf(file, "# created: %s\n# public key: %s\n%s\n",
		now.UTC().Format(time.RFC3339), keypair.PublicKey, keypair.PrivateKey.String())
	closeErr := file.Close()
	if writeErr != nil {
		os.Remove(path)
		return fmt.Errorf("sealed: writing identity file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(path)
		return fmt.Errorf("sealed: closing identity file: %w", closeErr)
	}
	return nil
}

// ReadIdentityFile loads the first x25519 identity from an age identity
// file. Comment and blank lines are skipped.
func ReadIdentityFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading identity file: %w", err)
	}
	defer secret.Zero(data)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("sealed: parsing identity in %s: %w", path, err)
		}
		privateKey, err := secret.NewFromString(line)
		if err != nil {
			return nil, fmt.Errorf("sealed: protecting private key: %w", err)
		}
		return &Keypair{PrivateKey: privateKey, PublicKey: identity.Recipient().String()}, nil
	}
	return nil, fmt.Errorf("sealed: no identity found in %s", path)
}

// Encrypt encrypts plaintext to the given age1... recipient.
func Encrypt(plaintext []byte, recipientKey string) ([]byte, error) {
	recipient, err := age.ParseX25519Recipient(recipientKey)
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing recipient %q: %w", recipientKey, err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Decrypt decrypts ciphertext with privateKey. The key is borrowed, not
// closed. The caller closes the returned plaintext buffer.
func Decrypt(ciphertext []byte, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing private key: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed: decrypted plaintext is empty")
	}
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: protecting plaintext: %w", err)
	}
	return buffer, nil
}
