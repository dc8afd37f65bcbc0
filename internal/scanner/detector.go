package scanner

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nexusos/nexuspkg/internal/models"
)

// minDetectSize is the smallest buffer magic detection looks at
const minDetectSize = 8

// headerSize is how much of a file DetectFile reads. It covers the tar
// magic at offset 257.
const headerSize = 512

type suffixRule struct {
	suffix string
	format models.Format
}

// Suffix rules are checked in order, so compound suffixes come first.
var suffixTable = []suffixRule{
	{".pkg.tar.zst", models.FormatZst},
	{".pkg.tar.xz", models.FormatZst},
	{".deb", models.FormatDeb},
	{".rpm", models.FormatRPM},
	{".apk", models.FormatAPK},
	{".AppImage", models.FormatAppImage},
	{".flatpak", models.FormatFlatpak},
	{".snap", models.FormatSnap},
	{".tar.xz", models.FormatTarXZ},
	{".tar.gz", models.FormatTarGZ},
	{".tgz", models.FormatTarGZ},
	{".tar", models.FormatTar},
	{".zip", models.FormatZip},
	{".whl", models.FormatWheel},
	{".npkg", models.FormatNative},
	{".nix", models.FormatNix},
	{".ebuild", models.FormatEbuild},
}

type magicEntry struct {
	format models.Format
	magic  []byte
	offset int
}

// Magic numbers in on-disk byte order. First match wins.
var magicTable = []magicEntry{
	{models.FormatDeb, []byte("!<ar"), 0},
	{models.FormatRPM, []byte{0xED, 0xAB, 0xEE, 0xDB}, 0},
	{models.FormatZst, []byte{0x28, 0xB5, 0x2F, 0xFD}, 0},
	{models.FormatZst, []byte{0xFD, 0x37, 0x7A, 0x58}, 0},
	{models.FormatTarGZ, []byte{0x1F, 0x8B, 0x08}, 0},
	{models.FormatZip, []byte("PK\x03\x04"), 0},
	{models.FormatFlatpak, []byte("OSTR"), 0},
	{models.FormatSnap, []byte("hsqs"), 0},
	{models.FormatAppImage, []byte{0x7F, 'E', 'L', 'F'}, 0},
	{models.FormatTar, []byte("usta"), 257},
}

type textRule struct {
	format  models.Format
	leader  func(data []byte) bool
	markers []string
}

var textRules = []textRule{
	{
		format:  models.FormatNix,
		leader:  func(b []byte) bool { return b[0] == '{' || (b[0] == '#' && b[1] == '!') },
		markers: []string{"stdenv.mkDerivation", "buildInputs"},
	},
	{
		format:  models.FormatEbuild,
		leader:  func(b []byte) bool { return b[0] == '#' && b[1] == ' ' },
		markers: []string{"EAPI=", "inherit"},
	},
}

// Detect classifies a package by file name and content. It always
// returns a format; FormatNative is the fallback.
func Detect(name string, data []byte) models.Format {
	f, _ := Classify(name, data)
	return f
}

// Classify is Detect that also reports whether anything positively
// matched, as opposed to falling back to the native format.
func Classify(name string, data []byte) (models.Format, bool) {
	if name != "" {
		if f, ok := DetectName(name); ok {
			return f, true
		}
	}
	return classifyBytes(data)
}

// DetectName matches the file name against the known suffixes.
func DetectName(name string) (models.Format, bool) {
	base := filepath.Base(name)
	for _, rule := range suffixTable {
		if strings.HasSuffix(base, rule.suffix) {
			return rule.format, true
		}
	}
	return models.FormatNative, false
}

// DetectBytes classifies a buffer by magic number, then by text heuristics.
func DetectBytes(data []byte) models.Format {
	f, _ := classifyBytes(data)
	return f
}

func classifyBytes(data []byte) (models.Format, bool) {
	if len(data) < minDetectSize {
		return models.FormatNative, false
	}

	for _, entry := range magicTable {
		end := entry.offset + len(entry.magic)
		if end < len(data) && bytes.Equal(data[entry.offset:end], entry.magic) {
			return entry.format, true
		}
	}

	if len(data) > 16 {
		for _, rule := range textRules {
			if !rule.leader(data) {
				continue
			}
			for _, marker := range rule.markers {
				if bytes.Contains(data, []byte(marker)) {
					return rule.format, true
				}
			}
		}
	}

	return models.FormatNative, false
}

// DetectFile reads the head of a file and classifies it
func DetectFile(path string) (models.Format, error) {
	f, _, err := classifyFile(path)
	return f, err
}

func classifyFile(path string) (models.Format, bool, error) {
	if f, ok := DetectName(path); ok {
		return f, true, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return models.FormatNative, false, err
	}
	defer file.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return models.FormatNative, false, err
	}

	f, ok := classifyBytes(header[:n])
	return f, ok, nil
}
