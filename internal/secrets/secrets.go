// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package secrets keeps credentials out of config files. A config value of
// the form keyring://service/key is replaced at load time by the secret
// stored under that service and key in the OS keyring.
package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// DefaultService is the keyring service used when the CLI is given a bare key.
const DefaultService = "quarry"

// Store reads and writes secrets by service and key.
type Store interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// Keyring is a Store backed by the OS keyring (Keychain, secret-service or
// Credential Manager, depending on platform).
type Keyring struct{}

// NewKeyring returns a Keyring store.
func NewKeyring() Keyring {
	return Keyring{}
}

func (Keyring) Get(service, key string) (string, error) {
	if err := checkRef(service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", quarryerr.Errorf(quarryerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", quarryerr.Wrapf(err, quarryerr.CodeSecretKeyringFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (Keyring) Set(service, key, value string) error {
	if err := checkRef(service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return quarryerr.Wrapf(err, quarryerr.CodeSecretKeyringFailure, "writing secret %s/%s", service, key)
	}
	return nil
}

func (Keyring) Delete(service, key string) error {
	if err := checkRef(service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return quarryerr.Errorf(quarryerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return quarryerr.Wrapf(err, quarryerr.CodeSecretKeyringFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}

func checkRef(service, key string) error {
	if service == "" || key == "" {
		return quarryerr.Errorf(quarryerr.CodeSecretInvalidInput,
			"secret service and key must not be empty (service=%q, key=%q)", service, key)
	}
	return nil
}
