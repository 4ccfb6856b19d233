// Package archive packages a directory tree into an in-memory tar.gz stream.
// Every member of the archive lives under a single root entry named after the
// source directory, so extracting the archive recreates that directory.
package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/klauspost/pgzip"

	"github.com/tomasbasham/deploy-publisher/internal/naming"
)

// ContentType is the MIME type of archives produced by Build.
const ContentType = "application/gzip"

// Stats summarises the contents of a built archive.
type Stats struct {
	Files int
	Dirs  int

	// Bytes is the total uncompressed size of regular files.
	Bytes int64

	// Compressed is the size of the tar.gz stream.
	Compressed int64

	// Skipped lists paths whose file type cannot be stored, such as sockets.
	Skipped []string
}

// Build walks dir recursively and returns a reader over the compressed
// archive, positioned at the start. Nothing is filtered: hidden files and
// nested archives are included. Symbolic links are stored as links and not
// followed. Sockets cannot be represented in tar and are skipped.
func Build(dir string) (*bytes.Reader, Stats, error) {
	var buf bytes.Buffer
	stats, err := Write(&buf, dir)
	if err != nil {
		return nil, Stats{}, err
	}
	stats.Compressed = int64(buf.Len())
	return bytes.NewReader(buf.Bytes()), stats, nil
}

// Write streams the tar.gz archive of dir to out.
func Write(out io.Writer, dir string) (Stats, error) {
	var stats Stats

	gz := pgzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	root := naming.SourceName(dir)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := path.Join(root, filepath.ToSlash(rel))

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSocket != 0 {
			stats.Skipped = append(stats.Skipped, p)
			return nil
		}
		// A filesystem root has no name of its own; its members sit at the
		// top of the archive.
		if name == "." {
			stats.Dirs++
			return nil
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(p); err != nil {
				return errors.Wrapf(err, "read link %q", p)
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return errors.Wrapf(err, "tar header for %q", p)
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return errors.Wrapf(err, "write tar header for %q", p)
		}

		switch {
		case info.IsDir():
			stats.Dirs++
			return nil
		case !info.Mode().IsRegular():
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		n, err := io.Copy(tw, f)
		if err != nil {
			return errors.Wrapf(err, "copy %q into archive", p)
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	if err != nil {
		_ = tw.Close()
		_ = gz.Close()
		return Stats{}, errors.Wrapf(err, "failed to archive %q", dir)
	}

	if err := tw.Close(); err != nil {
		_ = gz.Close()
		return Stats{}, errors.Wrap(err, "failed to finalise tar stream")
	}
	if err := gz.Close(); err != nil {
		return Stats{}, errors.Wrap(err, "failed to finalise gzip stream")
	}
	return stats, nil
}
