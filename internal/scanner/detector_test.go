package scanner

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/nexusos/nexuspkg/internal/models"
)

func TestDetectMagicTable(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, entry := range magicTable {
		end := entry.offset + len(entry.magic)

		for _, size := range []int{max(end+1, minDetectSize), end + 64, 4096} {
			buf := make([]byte, size)
			copy(buf[entry.offset:], entry.magic)
			// Noise beyond the checked window must not change the result
			rng.Read(buf[end:])

			if got := DetectBytes(buf); got != entry.format {
				t.Errorf("magic %x@%d size %d: got %s, want %s",
					entry.magic, entry.offset, size, got, entry.format)
			}
		}
	}
}

func TestDetectMagicExactBound(t *testing.T) {
	for _, entry := range magicTable {
		end := entry.offset + len(entry.magic)
		if end < minDetectSize {
			continue
		}
		// A buffer ending exactly at the magic is not long enough
		buf := make([]byte, end)
		copy(buf[entry.offset:], entry.magic)
		if got := DetectBytes(buf); got != models.FormatNative {
			t.Errorf("magic %x@%d with len %d: got %s, want native", entry.magic, entry.offset, end, got)
		}
	}

	// 4-byte magic at offset 0 needs more than 4 bytes, and the 8 byte
	// minimum applies on top of that
	buf := []byte{0xED, 0xAB, 0xEE, 0xDB, 0, 0, 0, 0}
	if got := DetectBytes(buf); got != models.FormatRPM {
		t.Errorf("8 byte rpm buffer: got %s", got)
	}
}

func TestDetectShortBuffers(t *testing.T) {
	for n := 0; n < minDetectSize; n++ {
		buf := make([]byte, n)
		if n >= 4 {
			copy(buf, []byte{0xED, 0xAB, 0xEE, 0xDB})
		}
		if got := DetectBytes(buf); got != models.FormatNative {
			t.Errorf("len %d: got %s, want native", n, got)
		}
		if got := Detect("", buf); got != models.FormatNative {
			t.Errorf("Detect len %d: got %s, want native", n, got)
		}
	}
}

func TestDetectSuffixWins(t *testing.T) {
	rpm := append([]byte{0xED, 0xAB, 0xEE, 0xDB}, make([]byte, 32)...)

	tests := []struct {
		name string
		want models.Format
	}{
		{"firefox-128.0-1-x86_64.pkg.tar.zst", models.FormatZst},
		{"old-1.0-1-x86_64.pkg.tar.xz", models.FormatZst},
		{"tool.tar.xz", models.FormatTarXZ},
		{"tool.tar.gz", models.FormatTarGZ},
		{"tool.tgz", models.FormatTarGZ},
		{"Krita-5.2.AppImage", models.FormatAppImage},
		{"numpy-2.0-cp312-manylinux.whl", models.FormatWheel},
		{"/var/cache/nexuspkg/foo.npkg", models.FormatNative},
		{"hello_1.0_amd64.deb", models.FormatDeb},
		{"bundle.zip", models.FormatZip},
	}
	for _, tt := range tests {
		if got := Detect(tt.name, rpm); got != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}

	// Unknown suffix falls through to magic
	if got := Detect("download.bin", rpm); got != models.FormatRPM {
		t.Errorf("unknown suffix: got %s, want rpm", got)
	}
}

func TestDetectTextHeuristics(t *testing.T) {
	tests := []struct {
		content string
		want    models.Format
	}{
		{"{ pkgs ? import <nixpkgs> {} }: pkgs.stdenv.mkDerivation { }", models.FormatNix},
		{"#!/usr/bin/env nix-shell\nbuildInputs = [ ];", models.FormatNix},
		{"# Copyright 2024 Gentoo Authors\nEAPI=8\n", models.FormatEbuild},
		{"# Distributed under GPL\ninherit cmake\n", models.FormatEbuild},
		{"#!/bin/sh\necho plain shell script here\n", models.FormatNative},
		{"{\"packages\": [\"nothing to see\"]}", models.FormatNative},
	}
	for _, tt := range tests {
		if got := DetectBytes([]byte(tt.content)); got != tt.want {
			t.Errorf("DetectBytes(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}

func TestClassifyReportsMatch(t *testing.T) {
	if _, ok := Classify("", []byte("just some plain text content")); ok {
		t.Error("plain text should not be a positive match")
	}
	if f, ok := Classify("x.deb", nil); !ok || f != models.FormatDeb {
		t.Errorf("Classify(x.deb) = %s, %v", f, ok)
	}
}

func TestScanSkipsUnknownFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"a.deb":          []byte("!<arch>\ndebian-binary"),
		"sub/b.rpm":      []byte("anything"),
		"c.dat":          append([]byte{0x28, 0xB5, 0x2F, 0xFD}, make([]byte, 16)...),
		"notes.txt":      []byte("hello world, not a package"),
		"sub/other.json": []byte("{}"),
	}
	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}
	}

	found, err := NewFileSystemScanner().Scan(context.Background(), dir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	got := map[string]models.Format{}
	for _, p := range found {
		rel, _ := filepath.Rel(dir, p.Path)
		got[filepath.ToSlash(rel)] = p.Format
	}
	want := map[string]models.Format{
		"a.deb":     models.FormatDeb,
		"sub/b.rpm": models.FormatRPM,
		"c.dat":     models.FormatZst,
	}
	if len(got) != len(want) {
		t.Fatalf("Scan found %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %s, want %s", k, got[k], v)
		}
	}
}
