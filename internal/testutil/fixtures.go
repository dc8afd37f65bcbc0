// Package testutil builds package fixtures for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Entry is one member of a fixture archive. Entries whose name ends in a
// slash are directories.
type Entry struct {
	Name string
	Body string
	Mode int64
}

var fixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Tar returns an uncompressed tar archive of entries.
func Tar(t testing.TB, entries []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode, ModTime: fixtureTime}
		if hdr.Mode == 0 {
			hdr.Mode = 0644
		}
		if e.Name != "" && e.Name[len(e.Name)-1] == '/' {
			hdr.Typeflag = tar.TypeDir
			if e.Mode == 0 {
				hdr.Mode = 0755
			}
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write tar body %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

// Gzip compresses data.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	return buf.Bytes()
}

// Zstd compresses data.
func Zstd(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	zw.Write(data)
	if err := zw.Close(); err != nil {
		t.Fatalf("zstd: %v", err)
	}
	return buf.Bytes()
}

// TarGz returns a gzip compressed tar archive of entries.
func TarGz(t testing.TB, entries []Entry) []byte {
	return Gzip(t, Tar(t, entries))
}

// Deb returns a .deb (ar archive) with the given control file and payload.
func Deb(t testing.TB, control string, payload []Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("!<arch>\n")
	writeArMember(&buf, "debian-binary", []byte("2.0\n"))
	writeArMember(&buf, "control.tar.gz", TarGz(t, []Entry{{Name: "./control", Body: control}}))
	writeArMember(&buf, "data.tar.gz", TarGz(t, payload))
	return buf.Bytes()
}

func writeArMember(buf *bytes.Buffer, name string, data []byte) {
	fmt.Fprintf(buf, "%-16s%-12d%-6d%-6d%-8s%-10d`\n", name+"/", fixtureTime.Unix(), 0, 0, "100644", len(data))
	buf.Write(data)
	if len(data)%2 != 0 {
		buf.WriteByte('\n')
	}
}

// Pacman returns a zstd compressed pacman package with a .PKGINFO.
func Pacman(t testing.TB, pkginfo string, payload []Entry) []byte {
	t.Helper()
	entries := append([]Entry{{Name: ".PKGINFO", Body: pkginfo}, {Name: ".MTREE", Body: "mtree"}}, payload...)
	return Zstd(t, Tar(t, entries))
}

// WriteFile writes data to name under a fresh temporary directory and
// returns its path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
