// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package secrets_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sigil-dev/quarry/internal/secrets"
	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

func newStore(t *testing.T) secrets.Store {
	t.Helper()
	keyring.MockInit()
	return secrets.NewKeyring()
}

func TestKeyring_SetGetDelete(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Set("quarry", "dsn", "teradatasql://u:p@host"))
	got, err := store.Get("quarry", "dsn")
	require.NoError(t, err)
	assert.Equal(t, "teradatasql://u:p@host", got)

	require.NoError(t, store.Set("quarry", "dsn", "rotated"))
	got, err = store.Get("quarry", "dsn")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got)

	require.NoError(t, store.Delete("quarry", "dsn"))
	_, err = store.Get("quarry", "dsn")
	assert.True(t, quarryerr.IsNotFound(err), "got %s", quarryerr.CodeOf(err))

	err = store.Delete("quarry", "dsn")
	assert.True(t, quarryerr.HasCode(err, quarryerr.CodeSecretNotFound))
}

func TestKeyring_EmptyInputs(t *testing.T) {
	store := newStore(t)

	assert.True(t, quarryerr.IsInvalidInput(store.Set("", "k", "v")))
	_, err := store.Get("svc", "")
	assert.True(t, quarryerr.IsInvalidInput(err))
	assert.True(t, quarryerr.IsInvalidInput(store.Delete("", "")))
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    secrets.Ref
		wantErr bool
	}{
		{name: "valid", value: "keyring://quarry/dsn", want: secrets.Ref{Service: "quarry", Key: "dsn"}},
		{name: "slashes in key", value: "keyring://quarry/vs/password", want: secrets.Ref{Service: "quarry", Key: "vs/password"}},
		{name: "other scheme", value: "vault://quarry/dsn", wantErr: true},
		{name: "missing key", value: "keyring://quarry/", wantErr: true},
		{name: "missing service", value: "keyring:///dsn", wantErr: true},
		{name: "no path", value: "keyring://quarry", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := secrets.ParseRef(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, quarryerr.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.value, got.String())
		})
	}
}

func TestParseName(t *testing.T) {
	ref, err := secrets.ParseName("dsn")
	require.NoError(t, err)
	assert.Equal(t, secrets.Ref{Service: secrets.DefaultService, Key: "dsn"}, ref)

	ref, err = secrets.ParseName("teradata/password")
	require.NoError(t, err)
	assert.Equal(t, secrets.Ref{Service: "teradata", Key: "password"}, ref)

	ref, err = secrets.ParseName("keyring://a/b")
	require.NoError(t, err)
	assert.Equal(t, secrets.Ref{Service: "a", Key: "b"}, ref)

	_, err = secrets.ParseName("")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("quarry", "api-key", "sk-123"))

	got, err := secrets.Resolve(store, "plain value")
	require.NoError(t, err)
	assert.Equal(t, "plain value", got)

	got, err = secrets.Resolve(store, "keyring://quarry/api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", got)

	_, err = secrets.Resolve(store, "keyring://quarry/missing")
	require.Error(t, err)
	assert.True(t, quarryerr.IsNotFound(err))
	assert.Contains(t, err.Error(), "keyring://quarry/missing")
}

func TestResolveViper(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Set("quarry", "dsn", "file:prod.db"))

	v := viper.New()
	v.Set("warehouse.dsn", "keyring://quarry/dsn")
	v.Set("warehouse.driver", "sqlite3")
	v.Set("vectorstore.password", "keyring://quarry/vs-password")

	err := secrets.ResolveViper(v, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectorstore.password")

	assert.Equal(t, "file:prod.db", v.GetString("warehouse.dsn"))
	assert.Equal(t, "sqlite3", v.GetString("warehouse.driver"))
	assert.Equal(t, "keyring://quarry/vs-password", v.GetString("vectorstore.password"))

	require.NoError(t, store.Set("quarry", "vs-password", "hunter2"))
	require.NoError(t, secrets.ResolveViper(v, store))
	assert.Equal(t, "hunter2", v.GetString("vectorstore.password"))
}
