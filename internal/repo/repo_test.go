package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordingCatalog struct {
	calls int
	pkgs  []models.Package
}

func (r *recordingCatalog) ReplaceCatalog(_ context.Context, _ string, pkgs []models.Package, _ time.Time) error {
	r.calls++
	r.pkgs = pkgs
	return nil
}

func testConfig() *models.Config {
	return &models.Config{UserAgent: "nexuspkg-test", FetchTimeout: 5 * time.Second, MaxIndexSize: 1 << 20}
}

func serveIndex(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const twoPackageIndex = `{
	// comments are tolerated
	"packages": [
		{"name": "foo", "version": "1.0", "description": "Foo tool", "download_url": "https://x/foo.npkg",
		 "checksum": "aa", "size": 10, "dependencies": ["libc", "zlib"]},
		{"name": "llama", "version": "2", "description": "model", "download_url": "https://x/llama.npkg",
		 "checksum": "bb", "size": 99, "type": 1, "format": "tar.gz", "architecture": "any"},
	]
}`

func TestParseIndex(t *testing.T) {
	pkgs, err := ParseIndex([]byte(twoPackageIndex), "https://repo")
	require.NoError(t, err)
	require.Len(t, pkgs, 2)

	foo := pkgs[0]
	assert.Equal(t, "foo", foo.Name)
	assert.Equal(t, models.TypeSoftware, foo.Type)
	assert.Equal(t, models.FormatNative, foo.Format)
	assert.Equal(t, models.DefaultArchitecture, foo.Architecture)
	assert.Equal(t, []string{"libc", "zlib"}, foo.Dependencies)
	assert.Equal(t, "https://repo", foo.SourceRepo)
	assert.False(t, foo.Installed)

	llama := pkgs[1]
	assert.Equal(t, models.TypeAIModel, llama.Type)
	assert.Equal(t, models.FormatTarGZ, llama.Format)
	assert.Equal(t, "any", llama.Architecture)
	assert.Equal(t, uint64(99), llama.Size)
}

func TestParseIndexSkipsBadEntries(t *testing.T) {
	doc := `{"packages": [
		{"name": "ok", "version": "1", "description": "", "download_url": "u", "checksum": "", "size": 0},
		{"name": "nosize", "version": "1", "description": "", "download_url": "u", "checksum": ""},
		{"name": "badsize", "version": "1", "description": "", "download_url": "u", "checksum": "", "size": "ten"},
		{"name": "../evil", "version": "1", "description": "", "download_url": "u", "checksum": "", "size": 1},
		{"name": "badformat", "version": "1", "description": "", "download_url": "u", "checksum": "", "size": 1, "format": "exe"},
		"not an object"
	]}`
	pkgs, err := ParseIndex([]byte(doc), "r")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "ok", pkgs[0].Name)
}

func TestParseIndexMalformed(t *testing.T) {
	for _, doc := range []string{`{"packages": [`, `{"items": []}`, `{"packages": {}}`, `[]`} {
		_, err := ParseIndex([]byte(doc), "r")
		require.Error(t, err, doc)
		assert.True(t, models.IsKind(err, models.ErrNetwork), doc)
	}
}

func TestSyncWritesCatalog(t *testing.T) {
	srv := serveIndex(t, twoPackageIndex)
	cat := &recordingCatalog{}
	s := NewSyncer(NewClient(testConfig()).WithHTTPClient(srv.Client()), cat, testConfig())

	n, err := s.Sync(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, cat.calls)
	assert.Equal(t, srv.URL, cat.pkgs[0].SourceRepo)
}

func TestSyncFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"malformed", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"packages": [ {`) }},
		{"missing packages", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"repo": "x"}`) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cat := &recordingCatalog{}
			s := NewSyncer(NewClient(testConfig()).WithHTTPClient(srv.Client()), cat, testConfig())
			_, err := s.Sync(context.Background(), srv.URL)
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.ErrNetwork))
			assert.Zero(t, cat.calls)
		})
	}
}

func TestSyncRoundTripWithStore(t *testing.T) {
	srv := serveIndex(t, twoPackageIndex)
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "packages.db"))
	require.NoError(t, err)
	defer st.Close()

	s := NewSyncer(NewClient(testConfig()).WithHTTPClient(srv.Client()), st, testConfig())
	_, err = s.Sync(ctx, srv.URL)
	require.NoError(t, err)

	all, err := st.Search(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, p := range all {
		assert.False(t, p.Installed)
	}

	info, err := st.Repo(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PackageCount)
}

func TestSyncDedupesEntries(t *testing.T) {
	srv := serveIndex(t, `{"packages": [
		{"name": "foo", "version": "1.0", "description": "", "download_url": "https://x/foo-1.npkg", "checksum": "aa", "size": 1},
		{"name": "foo", "version": "2.0", "description": "", "download_url": "https://x/foo-2.npkg", "checksum": "bb", "size": 1},
		{"name": "foo", "version": "1.0", "description": "", "download_url": "https://x/foo.deb", "checksum": "cc", "size": 1, "format": "deb"}
	]}`)
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "packages.db"))
	require.NoError(t, err)
	defer st.Close()

	n, err := NewSyncer(NewClient(testConfig()).WithHTTPClient(srv.Client()), st, testConfig()).Sync(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := st.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, n)

	info, err := st.Repo(ctx, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, n, info.PackageCount)

	native, err := st.Get(ctx, models.Key{Name: "foo", Format: models.FormatNative, Architecture: models.DefaultArchitecture})
	require.NoError(t, err)
	assert.Equal(t, "1.0", native.Version)
}

func TestFetchIndexSizeLimit(t *testing.T) {
	big := `{"packages": [], "pad": "` + strings.Repeat("x", 20000) + `"}`
	srv := serveIndex(t, big)

	cfg := testConfig()
	cfg.MaxIndexSize = 10000
	_, err := NewClient(cfg).WithHTTPClient(srv.Client()).FetchIndex(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrNetwork))

	cfg.MaxIndexSize = 1 << 20
	data, err := NewClient(cfg).WithHTTPClient(srv.Client()).FetchIndex(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, big, string(data))
}

func TestReadGrowing(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	got, err := readGrowing(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = readGrowing(bytes.NewReader(data), int64(len(data)-1))
	assert.ErrorIs(t, err, errTooLarge)
}

func artifactServer(t *testing.T, files map[string][]byte, inflight *int32, peak *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inflight != nil {
			n := atomic.AddInt32(inflight, 1)
			for {
				p := atomic.LoadInt32(peak)
				if n <= p || atomic.CompareAndSwapInt32(peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			defer atomic.AddInt32(inflight, -1)
		}
		data, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestFetchVerifies(t *testing.T) {
	payload := []byte("0123456789")
	srv := artifactServer(t, map[string][]byte{"foo.npkg": payload}, nil, nil)
	defer srv.Close()
	c := NewClient(testConfig()).WithHTTPClient(srv.Client())
	dir := t.TempDir()

	good := Artifact{Package: "foo", URL: srv.URL + "/foo.npkg", Path: filepath.Join(dir, "foo.npkg"), Checksum: sum(payload)}
	require.NoError(t, c.Fetch(context.Background(), good, time.Second))
	_, err := os.Stat(good.Path)
	assert.NoError(t, err)

	bad := good
	bad.Path = filepath.Join(dir, "bad.npkg")
	bad.Checksum = strings.Repeat("0", 64)
	err = c.Fetch(context.Background(), bad, time.Second)
	assert.True(t, models.IsKind(err, models.ErrChecksumMismatch))
	_, statErr := os.Stat(bad.Path)
	assert.True(t, os.IsNotExist(statErr))

	missing := good
	missing.URL = srv.URL + "/absent.npkg"
	missing.Path = filepath.Join(dir, "absent.npkg")
	err = c.Fetch(context.Background(), missing, time.Second)
	assert.True(t, models.IsKind(err, models.ErrNetwork))
	assert.Contains(t, err.Error(), "foo")
	_, statErr = os.Stat(missing.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadTimeoutRemovesPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(testConfig()).WithHTTPClient(srv.Client())
	dest := filepath.Join(t.TempDir(), "slow.npkg")
	err := c.Fetch(context.Background(), Artifact{Package: "slow", URL: srv.URL + "/slow", Path: dest}, 100*time.Millisecond)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrNetwork))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchAllBoundedParallelism(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := make(map[string][]byte)
	var artifacts []Artifact
	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("pkg%d", i)
		files[name+".npkg"] = []byte(name)
		artifacts = append(artifacts, Artifact{
			Package:  name,
			Path:     filepath.Join(dir, name+".npkg"),
			Checksum: sum([]byte(name)),
		})
	}
	artifacts[3].Checksum = "wrong"

	var inflight, peak int32
	srv := artifactServer(t, files, &inflight, &peak)
	defer srv.Close()
	for i := range artifacts {
		artifacts[i].URL = srv.URL + "/" + artifacts[i].Package + ".npkg"
	}

	c := NewClient(testConfig()).WithHTTPClient(srv.Client())
	errs := c.FetchAll(context.Background(), artifacts, 2, time.Second)
	require.Len(t, errs, 8)
	for i, err := range errs {
		if i == 3 {
			assert.True(t, models.IsKind(err, models.ErrChecksumMismatch))
			continue
		}
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestFileURL(t *testing.T) {
	src := filepath.Join(t.TempDir(), "index")
	require.NoError(t, os.WriteFile(src, []byte(`{"packages": []}`), 0644))

	cat := &recordingCatalog{}
	s := NewSyncer(NewClient(testConfig()), cat, testConfig())
	n, err := s.Sync(context.Background(), "file://"+filepath.Dir(src))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, cat.calls)
}
