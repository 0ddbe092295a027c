// Package bundle packs a finished catalog tree into a single portable
// archive and unpacks it again.
package bundle

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// Suffix is the file extension of created bundles.
const Suffix = ".tar.gz"

// Create archives the catalog tree at srcDir into outFile as gzipped tar.
// The archive contains the tree's contents at its root, so unpacking into an
// empty directory reproduces the catalog layout exactly.
func Create(ctx context.Context, srcDir, outFile string) error {
	srcRoot := filepath.ToSlash(srcDir)
	if !strings.HasSuffix(srcRoot, "/") {
		srcRoot += "/"
	}
	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		srcRoot: "",
	})
	if err != nil {
		return errors.Wrap(err, "failed to read files from disk")
	}

	if err := fsutil.EnsureFileDir(outFile); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	file, err := os.Create(outFile)
	if err != nil {
		return errors.Wrapf(err, "failed to create output file %s", outFile)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	format := archives.CompressedArchive{
		Compression: archives.Gz{},
		Archival:    archives.Tar{},
	}
	return format.Archive(ctx, file, files)
}

// Extract unpacks a bundle into destDir.
func Extract(ctx context.Context, archivePath, destDir string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return errors.Wrap(err, "failed to open archive file")
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	if err := fsutil.EnsureDir(destDir); err != nil {
		return errors.Wrap(err, "failed to create destination directory")
	}

	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(destDir, filepath.FromSlash(path))
		if d.IsDir() {
			return fsutil.EnsureDir(target)
		}
		src, err := fsys.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open archived file %s", path)
		}
		defer func() { _ = src.Close() }()

		if err := fsutil.EnsureFileDir(target); err != nil {
			return err
		}
		dst, err := fsutil.CreateFilePerm(target, fsutil.FileModeDefault)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", target)
		}
		defer func() { _ = dst.Close() }()

		if _, err := io.Copy(dst, src); err != nil {
			return errors.Wrapf(err, "failed to extract %s", path)
		}
		return nil
	})
}
