package utils

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// sha256("hello world\n")
const helloSHA256 = "a948904f2f0f479b8f8197694b30184b0d2ed1c1cd2a1ec0fb85d299a192a447"

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestVerifyChecksum(t *testing.T) {
	path := writeTemp(t, "hello.txt", []byte("hello world\n"))

	ok, err := VerifyChecksum(path, helloSHA256)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChecksum(path, "sha256:"+helloSHA256)
	require.NoError(t, err)
	assert.True(t, ok)

	// Comparison is case-sensitive
	ok, err = VerifyChecksum(path, strings.ToUpper(helloSHA256))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyChecksum(path, strings.Repeat("0", 64))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyChecksumMissingFile(t *testing.T) {
	_, err := VerifyChecksum(filepath.Join(t.TempDir(), "absent"), helloSHA256)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestDigestIdempotent(t *testing.T) {
	data := bytes.Repeat([]byte("nexuspkg"), 20000) // spans several chunks
	path := writeTemp(t, "big.bin", data)

	first, err := FileDigest(path, "sha256")
	require.NoError(t, err)
	second, err := FileDigest(path, "sha256")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sums, err := CalculateChecksums(path)
	require.NoError(t, err)
	assert.Equal(t, first, sums.SHA256)
	assert.Equal(t, int64(len(data)), sums.Size)

	ok, err := VerifyChecksum(path, "blake3:"+sums.BLAKE3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecompressSniffing(t *testing.T) {
	payload := []byte("tar payload bytes for the decompressor")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(payload)
	gw.Close()

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	zw.Write(payload)
	zw.Close()

	var xzb bytes.Buffer
	xw, err := xz.NewWriter(&xzb)
	require.NoError(t, err)
	xw.Write(payload)
	xw.Close()

	var lz bytes.Buffer
	lw := lz4.NewWriter(&lz)
	lw.Write(payload)
	lw.Close()

	tests := []struct {
		name string
		data []byte
		want Compression
	}{
		{"gzip", gz.Bytes(), CompressionGzip},
		{"zstd", zs.Bytes(), CompressionZstd},
		{"xz", xzb.Bytes(), CompressionXZ},
		{"lz4", lz.Bytes(), CompressionLZ4},
		{"none", payload, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc, c, err := Decompress(bytes.NewReader(tt.data))
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, tt.want, c)

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "usr", "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "usr", "bin", "tool"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("docs"), 0644))
	require.NoError(t, os.Symlink("bin/tool", filepath.Join(src, "usr", "tool-link")))

	require.NoError(t, CopyTree(src, dst))

	info, err := os.Stat(filepath.Join(dst, "usr", "bin", "tool"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "usr", "tool-link"))
	require.NoError(t, err)
	assert.Equal(t, "bin/tool", link)

	data, err := os.ReadFile(filepath.Join(dst, "README"))
	require.NoError(t, err)
	assert.Equal(t, "docs", string(data))
}

func TestDetectConflicts(t *testing.T) {
	pkgs := []models.Package{
		{Name: "foo", Format: models.FormatDeb},
		{Name: "foo", Format: models.FormatRPM},
		{Name: "foo", Format: models.FormatDeb, Architecture: models.DefaultArchitecture},
	}
	conflicts := DetectConflicts(pkgs)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.FormatDeb, conflicts[0].Format)

	unique := Dedupe(pkgs)
	require.Len(t, unique, 2)
	assert.Equal(t, models.FormatDeb, unique[0].Format)
	assert.Empty(t, unique[0].Architecture)
	assert.Equal(t, models.FormatRPM, unique[1].Format)

	assert.Equal(t, []string{"a", "b"}, UniqueNames([]string{"a", "b", "a"}))
}
