package integration

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // Maven publishes SHA-1 checksums.
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	//nolint:staticcheck // Same package the signature checker uses.
	"golang.org/x/crypto/openpgp"
	//nolint:staticcheck // Same package the signature checker uses.
	"golang.org/x/crypto/openpgp/armor"

	"github.com/oshokin/deploy-manager/internal/config"
)

const (
	groupPath  = "/maven2/no/example/payload"
	artifactID = "payload"
	orgnumber  = "910077473"
)

// publishedRepository serves one signed payload build like a Maven repository,
// together with the signer public key at /keys/signer.asc.
func publishedRepository(t *testing.T, version string) *httptest.Server {
	t.Helper()

	signer, err := openpgp.NewEntity("Payload Release", "", "release@example.com", nil)
	require.NoError(t, err)

	var publicKey bytes.Buffer

	w, err := armor.Encode(&publicKey, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, signer.Serialize(w))
	require.NoError(t, w.Close())

	jar := []byte("PK payload " + version)

	var signature bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&signature, signer, bytes.NewReader(jar), nil))

	sum := sha1.Sum(jar) //nolint:gosec // Maven publishes SHA-1 checksums.
	jarPath := groupPath + "/" + artifactID + "/" + version + "/" + artifactID + "-" + version + ".jar"
	metadata := `<metadata><versioning><release>` + version + `</release></versioning></metadata>`

	files := make(map[string][]byte)
	files[groupPath+"/"+artifactID+"/maven-metadata.xml"] = []byte(metadata)
	files[jarPath] = jar
	files[jarPath+".sha1"] = []byte(hex.EncodeToString(sum[:]))
	files[jarPath+".asc"] = signature.Bytes()
	files["/keys/signer.asc"] = publicKey.Bytes()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(content)
	}))
	t.Cleanup(ts.Close)

	return ts
}

// healthyActuator always reports UP.
func healthyActuator(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	}))
	t.Cleanup(ts.Close)

	return ts
}

// fakeRuntime writes an interpreter stand-in that ignores its arguments and idles.
func fakeRuntime(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-java")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho payload starting\nexec sleep 30\n"), 0o700)) //nolint:gosec // Must be executable.

	return path
}

// writeConfig stores a configuration pointing at the given endpoints.
func writeConfig(t *testing.T, dir, repositoryURL, actuatorURL, runtime, listenAddress string) string {
	t.Helper()

	cfg := &config.Config{
		Orgnumber: orgnumber,
		LogLevel:  "debug",
		StateFile: filepath.Join(dir, "state.yaml"),
		Repository: config.Repository{
			URL:        repositoryURL + "/maven2",
			GroupID:    "no.example.payload",
			ArtifactID: artifactID,
		},
		Actuator: config.Actuator{URL: actuatorURL + "/manage"},
		Launch: config.Launch{
			Runtime:      runtime,
			Home:         filepath.Join(dir, "home"),
			Profile:      "integration",
			Timeout:      5 * time.Second,
			PollInterval: 100 * time.Millisecond,
			IncludeLog:   true,
		},
		Shutdown:     config.Shutdown{Retries: 3, PollInterval: 100 * time.Millisecond},
		Scheduler:    config.Scheduler{Cron: "@every 1h"},
		Verification: config.Verification{PublicKeyURLs: []string{repositoryURL + "/keys/signer.asc"}},
		Blocklist:    config.Blocklist{Enabled: true},
		Status:       config.Status{ListenAddress: listenAddress},
	}

	path := filepath.Join(dir, "deploy-manager.yaml")
	require.NoError(t, config.Save(path, cfg))

	return path
}

// reservePort returns a free loopback address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // Test code needs simple net.Listen for port allocation.
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}
