package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerbyonvault/vaultclient/client"
	"github.com/cerbyonvault/vaultclient/client/clienttest"
	"github.com/cerbyonvault/vaultclient/internal/config"
)

func newAPI(t *testing.T) *clienttest.TokenServer {
	t.Helper()
	srv := clienttest.NewTokenServer(clienttest.NewFakeClock(time.Unix(1_900_000_000, 0)), time.Hour)
	t.Cleanup(srv.Close)

	srv.Router.HandleFunc("/certificates/", srv.RequireBearer(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"root-ca","certificate_type":"RootCA","not_after":"2031-01-01T00:00:00Z",
			"children":[{"id":2,"name":"web","certificate_type":"Leaf","not_after":"2030-03-01T00:00:00Z","is_expired":false,"children":[]}]}]`))
	})).Methods(http.MethodGet)
	srv.Router.HandleFunc("/upload-cert-file/", srv.RequireBearer(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "upload-1", Path: "/"})
		w.Write([]byte(`{"status":"parsed","session_key":"upload_preview:7:x",
			"certificates":[{"temp_id":"cert_1","filename":"web","common_name":"web.example.com"}],
			"private_key":{"temp_id":"key_1","bit_length":2048}}`))
	})).Methods(http.MethodPost)
	srv.Router.HandleFunc("/import-cert-metadata/", srv.RequireBearer(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err != nil || c.Value != "upload-1" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"Session expired or invalid session key"}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !bytes.Contains(body, []byte(`"linked_cert_temp_id":"cert_1"`)) || !bytes.Contains(body, []byte(`"name":"frontend"`)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Certificates and key imported successfully.","imported_count":1}`))
	})).Methods(http.MethodPost)
	return srv
}

// setup points vaultctl at srv with a file store in a temp dir
func setup(t *testing.T, srv *clienttest.TokenServer) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("VAULT_API_URL", srv.APIURL())
	t.Setenv("VAULT_STORE", config.StoreFile)
	t.Setenv("VAULT_STORE_PATH", dir)
	t.Setenv("VAULT_LOG_LEVEL", "error")
	return dir
}

func vaultctl(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func TestVaultctl_SessionLifecycle(t *testing.T) {
	srv := newAPI(t)
	dir := setup(t, srv)

	out, err := vaultctl(t, "", "login", "-email", clienttest.Email, "-password", clienttest.Password)
	require.NoError(t, err)
	assert.Equal(t, "logged in as alice@example.com (profile default)\n", out)
	_, err = os.Stat(filepath.Join(dir, "default.json"))
	require.NoError(t, err)

	// each command is a fresh process restoring the saved session
	out, err = vaultctl(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice Liddell <alice@example.com>")
	assert.Contains(t, out, "teams:    ops")

	out, err = vaultctl(t, "", "token")
	require.NoError(t, err)
	assert.True(t, srv.Accepts(strings.TrimSpace(out)))

	out, err = vaultctl(t, "", "profiles")
	require.NoError(t, err)
	assert.Equal(t, "* default\n", out)

	out, err = vaultctl(t, "", "certs")
	require.NoError(t, err)
	assert.Contains(t, out, "root-ca")
	assert.Contains(t, out, "  web")

	out, err = vaultctl(t, "", "certs", "-team", "9")
	require.NoError(t, err)
	assert.NotContains(t, out, "root-ca")

	out, err = vaultctl(t, "", "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, err = vaultctl(t, "", "whoami")
	assert.True(t, client.IsAuthFailure(err))
	assert.Equal(t, int32(1), srv.Obtains.Load())
}

func TestVaultctl_LoginPrompts(t *testing.T) {
	srv := newAPI(t)
	setup(t, srv)

	out, err := vaultctl(t, clienttest.Email+"\n"+clienttest.Password+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as alice@example.com")

	_, err = vaultctl(t, clienttest.Email+"\nwrong\n", "login")
	assert.True(t, errors.Is(err, client.ErrInvalidCredentials))

	// a rejected login keeps the existing session
	_, err = vaultctl(t, "", "token")
	assert.NoError(t, err)
}

func TestVaultctl_RevokedRefreshEndsSession(t *testing.T) {
	srv := newAPI(t)
	setup(t, srv)
	_, err := vaultctl(t, "", "login", "-email", clienttest.Email, "-password", clienttest.Password)
	require.NoError(t, err)

	// expire the stored access token on the server's clock and revoke the refresh token
	srv.Clock.Advance(2 * time.Hour)
	srv.FailRefresh(http.StatusUnauthorized)

	_, err = vaultctl(t, "", "certs")
	assert.True(t, client.IsAuthFailure(err))

	_, err = vaultctl(t, "", "token")
	assert.True(t, client.IsAuthFailure(err))
}

func TestVaultctl_UploadKeepsServerSession(t *testing.T) {
	srv := newAPI(t)
	setup(t, srv)
	_, err := vaultctl(t, "", "login", "-email", clienttest.Email, "-password", clienttest.Password)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "web.pem")
	require.NoError(t, os.WriteFile(file, []byte("-----BEGIN CERTIFICATE-----\n"), 0o600))

	out, err := vaultctl(t, "", "upload", "-file", file, "-name", "frontend", "-teams", "1, 2")
	require.NoError(t, err)
	assert.Equal(t, "Certificates and key imported successfully. (1 imported)\n", out)
}

func TestVaultctl_Usage(t *testing.T) {
	_, err := vaultctl(t, "", "frobnicate")
	assert.ErrorContains(t, err, "unknown command")

	_, err = vaultctl(t, "")
	assert.Error(t, err)

	_, err = vaultctl(t, "", "help")
	assert.NoError(t, err)
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"memory", config.Config{Store: config.StoreMemory, Profile: "default"}},
		{"fs", config.Config{Store: config.StoreFile, StorePath: t.TempDir(), Profile: "default"}},
		{"fs sealed", config.Config{Store: config.StoreFile, StorePath: t.TempDir(), Profile: "default", Passphrase: "hunter2"}},
		{"gorm", config.Config{Store: config.StoreSQL, StorePath: filepath.Join(t.TempDir(), "creds.db"), Profile: "default"}},
		{"redis", config.Config{Store: config.StoreRedis, RedisAddr: mr.Addr(), Profile: "default", RedisTTL: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := openStorage(ctx, &tt.cfg)
			require.NoError(t, err)
			defer st.close()

			store := client.NewCredentialStore(st.backend)
			pair := &client.CredentialPair{Access: clienttest.MintToken(time.Unix(1_900_000_000, 0)), Refresh: "r-" + tt.name}
			require.NoError(t, store.Save(ctx, pair))

			loaded, err := client.NewCredentialStore(st.backend).Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, pair, loaded)

			if tt.cfg.Store != config.StoreMemory {
				names, err := st.profiles(ctx)
				require.NoError(t, err)
				assert.Equal(t, []string{"default"}, names)
			}
		})
	}

	_, err := openStorage(ctx, &config.Config{Store: "keychain"})
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestServe(t *testing.T) {
	srv := newAPI(t)
	setup(t, srv)
	cfg, err := config.Load()
	require.NoError(t, err)
	a := &app{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, a, ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
