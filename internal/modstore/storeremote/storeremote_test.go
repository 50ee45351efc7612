// Copyright 2026 The Modcache Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storeremote_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildcache/modcache/internal/modcacheerr"
	"github.com/buildcache/modcache/internal/modstore/storeremote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	data := map[string][]byte{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			body, ok := data[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(body)
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			data[r.URL.Path] = body
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)
	return server, data
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	store, err := storeremote.New(zaptest.NewLogger(t), storeremote.Config{
		BaseURL:        server.URL,
		SaveToRemote:   true,
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), "v1/g/a/fp/build.xml", []byte("<build/>")))
	data, ok, err := store.Get(context.Background(), "v1/g/a/fp/build.xml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "<build/>", string(data))
}

func TestGetMissingReturnsNotOK(t *testing.T) {
	t.Parallel()
	server, _ := newTestServer(t)
	store, err := storeremote.New(zaptest.NewLogger(t), storeremote.Config{
		BaseURL:        server.URL,
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(context.Background(), "v1/g/a/missing/build.xml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOfflineNeverDialsNetwork(t *testing.T) {
	t.Parallel()
	store, err := storeremote.New(zaptest.NewLogger(t), storeremote.Config{Offline: true})
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Get(context.Background(), "v1/g/a/fp/build.xml")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(context.Background(), "v1/g/a/fp/artifact.jar", []byte("x")))
}

func TestPutIsNoOpWhenSaveToRemoteDisabled(t *testing.T) {
	t.Parallel()
	server, data := newTestServer(t)
	store, err := storeremote.New(zaptest.NewLogger(t), storeremote.Config{
		BaseURL:        server.URL,
		SaveToRemote:   false,
		ConnectTimeout: time.Second,
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), "v1/g/a/fp/build.xml", []byte("<build/>")))
	assert.Empty(t, data, "read-only remote store must never upload")
}

func TestInvalidBaseURLIsConfigurationError(t *testing.T) {
	t.Parallel()
	_, err := storeremote.New(zaptest.NewLogger(t), storeremote.Config{BaseURL: "://not-a-url"})
	require.Error(t, err)
	var configErr *modcacheerr.ConfigurationError
	assert.True(t, errors.As(err, &configErr))
}
