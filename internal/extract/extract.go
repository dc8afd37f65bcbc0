// Package extract unpacks tar-family and zip archives into a directory.
//
// The archive kind is recognized from content. Every entry is placed
// under the destination directory; entries whose path, link target or
// hardlink source would leave it, lexically or through links already
// extracted, are rejected.
package extract

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nexusos/nexuspkg/internal/models"
	"github.com/nexusos/nexuspkg/internal/utils"
	"github.com/sirupsen/logrus"
)

const stage = "extract"

var zipMagic = []byte("PK\x03\x04")

// Options tune an extraction
type Options struct {
	// Skip reports entries (by cleaned, slash-separated name) that should
	// not be written.
	Skip func(name string) bool
}

// Extract unpacks archivePath into dest. Entries already written remain
// on error; the caller owns cleanup of dest.
func Extract(ctx context.Context, archivePath, dest string) error {
	return ExtractWithOptions(ctx, archivePath, dest, Options{})
}

// ExtractWithOptions is Extract with entry filtering.
func ExtractWithOptions(ctx context.Context, archivePath, dest string, opts Options) error {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return models.WrapError(models.ErrExtraction, stage, "", fmt.Errorf("resolve destination: %w", err))
	}
	if err := os.MkdirAll(absDest, 0755); err != nil {
		return models.WrapError(models.ErrExtraction, stage, "", fmt.Errorf("create destination: %w", err))
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return models.WrapError(models.ErrIO, stage, "", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, _ := br.Peek(len(zipMagic))

	w := &writer{ctx: ctx, dest: absDest, skip: opts.Skip}
	if bytes.Equal(header, zipMagic) {
		err = w.extractZip(archivePath)
	} else {
		err = w.extractTar(br)
	}
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("extraction canceled: %w", ctx.Err())
		}
		return models.WrapError(models.ErrExtraction, stage, "", err)
	}

	w.finishDirs()
	return nil
}

type dirTime struct {
	path  string
	mtime time.Time
}

type writer struct {
	ctx  context.Context
	dest string
	skip func(string) bool
	dirs []dirTime
}

// maxLinkDepth bounds symlink chains followed while confining a path.
const maxLinkDepth = 40

// resolve joins an entry name onto the destination and rejects names that
// escape it, either lexically or through symlinks already written. The
// final component is not followed.
func (w *writer) resolve(name string) (string, error) {
	target := filepath.Join(w.dest, filepath.FromSlash(name))
	if !w.within(target) {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	rel, err := filepath.Rel(w.dest, target)
	if err != nil || rel == "." {
		return w.dest, nil
	}
	parent, ok := w.confine(w.dest, filepath.Dir(rel), 0)
	if !ok {
		return "", fmt.Errorf("illegal path in archive: %s", name)
	}
	return filepath.Join(parent, filepath.Base(rel)), nil
}

// confine walks rel from base one component at a time, following links
// found on disk, and returns the real path. It fails as soon as any step
// lands outside the destination.
func (w *writer) confine(base, rel string, depth int) (string, bool) {
	if depth > maxLinkDepth {
		return "", false
	}
	cur := base
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			cur = filepath.Dir(cur)
		default:
			next := filepath.Join(cur, part)
			if fi, err := os.Lstat(next); err == nil && fi.Mode()&os.ModeSymlink != 0 {
				link, err := os.Readlink(next)
				if err != nil {
					return "", false
				}
				from := cur
				if filepath.IsAbs(link) {
					// Absolute links on disk count only when they point inside
					// the destination, which always holds for a root of "/"
					if !w.within(link) {
						return "", false
					}
					from, link = w.dest, strings.TrimPrefix(filepath.Clean(link), w.dest)
				}
				resolved, ok := w.confine(from, link, depth+1)
				if !ok {
					return "", false
				}
				next = resolved
			}
			cur = next
		}
		if !w.within(cur) {
			return "", false
		}
	}
	return cur, true
}

func (w *writer) within(path string) bool {
	rel, err := filepath.Rel(w.dest, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *writer) skipped(name string) bool {
	if w.skip == nil {
		return false
	}
	return w.skip(strings.TrimPrefix(filepath.ToSlash(filepath.Clean(name)), "./"))
}

func (w *writer) extractTar(r io.Reader) error {
	rc, compression, err := utils.Decompress(r)
	if err != nil {
		return fmt.Errorf("open %s stream: %w", compression, err)
	}
	defer rc.Close()

	tr := tar.NewReader(&ctxReader{ctx: w.ctx, r: rc})
	entries := 0
	for {
		if err := w.ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			if entries == 0 {
				return fmt.Errorf("archive is empty or not a recognized format")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		entries++

		if w.skipped(hdr.Name) {
			continue
		}
		if err := w.writeTarEntry(tr, hdr); err != nil {
			return err
		}
	}
}

func (w *writer) writeTarEntry(tr *tar.Reader, hdr *tar.Header) error {
	target, err := w.resolve(hdr.Name)
	if err != nil {
		return err
	}
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0700); err != nil {
			return err
		}
		os.Chmod(target, mode)
		w.dirs = append(w.dirs, dirTime{target, hdr.ModTime})
		return nil

	case tar.TypeReg:
		if err := w.writeFile(target, tr, mode); err != nil {
			return fmt.Errorf("write %s: %w", hdr.Name, err)
		}

	case tar.TypeSymlink:
		if err := w.writeSymlink(target, hdr.Linkname); err != nil {
			return fmt.Errorf("symlink %s: %w", hdr.Name, err)
		}
		return nil

	case tar.TypeLink:
		source, err := w.resolve(hdr.Linkname)
		if err != nil {
			return err
		}
		if _, ok := w.confine(filepath.Dir(source), filepath.Base(source), 0); !ok {
			return fmt.Errorf("hardlink source %q escapes destination", hdr.Linkname)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		os.Remove(target)
		if err := os.Link(source, target); err != nil {
			return fmt.Errorf("hardlink %s: %w", hdr.Name, err)
		}
		return nil

	default:
		logrus.Debugf("Skipping unsupported tar entry %s (type %c)", hdr.Name, hdr.Typeflag)
		return nil
	}

	if err := os.Chtimes(target, hdr.AccessTime, hdr.ModTime); err != nil {
		logrus.Debugf("Cannot restore times on %s: %v", target, err)
	}
	restoreXattrs(target, hdr.PAXRecords)
	return nil
}

func (w *writer) writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	// Replace rather than follow anything already at target
	os.Remove(target)

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(target, mode)
}

func (w *writer) writeSymlink(target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("absolute link target %q", linkname)
	}
	if _, ok := w.confine(filepath.Dir(target), filepath.FromSlash(linkname), 0); !ok {
		return fmt.Errorf("link target %q escapes destination", linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	os.Remove(target)
	return os.Symlink(linkname, target)
}

func (w *writer) extractZip(path string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if w.skipped(file.Name) {
			continue
		}
		if err := w.writeZipEntry(file); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) writeZipEntry(file *zip.File) error {
	target, err := w.resolve(file.Name)
	if err != nil {
		return err
	}
	info := file.FileInfo()

	if info.IsDir() {
		if err := os.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
			return err
		}
		w.dirs = append(w.dirs, dirTime{target, file.Modified})
		return nil
	}

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()
	r := &ctxReader{ctx: w.ctx, r: rc}

	if info.Mode()&os.ModeSymlink != 0 {
		link, err := io.ReadAll(io.LimitReader(r, 4096))
		if err != nil {
			return err
		}
		return w.writeSymlink(target, string(link))
	}

	if err := w.writeFile(target, r, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write %s: %w", file.Name, err)
	}
	if !file.Modified.IsZero() {
		os.Chtimes(target, file.Modified, file.Modified)
	}
	return nil
}

// finishDirs applies directory mtimes last, since writing children
// updates them.
func (w *writer) finishDirs() {
	for i := len(w.dirs) - 1; i >= 0; i-- {
		d := w.dirs[i]
		if d.mtime.IsZero() {
			continue
		}
		os.Chtimes(d.path, d.mtime, d.mtime)
	}
}

// ctxReader fails reads once the context is done, so a long entry copy is
// interrupted by a deadline.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && c.ctx.Err() != nil {
		return n, c.ctx.Err()
	}
	return n, err
}
