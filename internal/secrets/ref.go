// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets

import (
	"strings"

	"github.com/spf13/viper"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

const scheme = "keyring://"

// Ref names one keyring entry.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string {
	return scheme + r.Service + "/" + r.Key
}

// IsRef reports whether value is a keyring:// reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may itself contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, quarryerr.Errorf(quarryerr.CodeSecretInvalidInput, "not a keyring reference: %q", value)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, quarryerr.Errorf(quarryerr.CodeSecretInvalidInput,
			"invalid keyring reference %q: expected keyring://service/key", value)
	}
	return Ref{Service: service, Key: key}, nil
}

// ParseName accepts either a full reference or "service/key", and falls back
// to DefaultService for a bare key.
func ParseName(name string) (Ref, error) {
	if IsRef(name) {
		return ParseRef(name)
	}
	if service, key, ok := strings.Cut(name, "/"); ok {
		return ParseRef(scheme + service + "/" + key)
	}
	if name == "" {
		return Ref{}, quarryerr.New(quarryerr.CodeSecretInvalidInput, "secret name must not be empty")
	}
	return Ref{Service: DefaultService, Key: name}, nil
}

// Resolve returns value unchanged unless it is a keyring reference, in which
// case it returns the referenced secret.
func Resolve(store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := store.Get(ref.Service, ref.Key)
	if err != nil {
		return "", quarryerr.Wrapf(err, quarryerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveViper replaces every keyring reference held in v with its secret.
// All failures are collected; the offending keys keep their reference text.
func ResolveViper(v *viper.Viper, store Store) error {
	var errs []error
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !IsRef(val) {
			continue
		}
		resolved, err := Resolve(store, val)
		if err != nil {
			errs = append(errs, quarryerr.Wrapf(err, quarryerr.CodeSecretResolveFailure, "config key %s", key))
			continue
		}
		v.Set(key, resolved)
	}
	return quarryerr.Join(errs...)
}
