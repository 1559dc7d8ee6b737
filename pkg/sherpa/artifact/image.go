package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	diskfilesystem "github.com/diskfs/go-diskfs/filesystem"
	"github.com/kdomanski/iso9660"
)

// WriteISO authors a single-session ISO9660 image at destPath containing
// files (name -> contents), the collaborator behind CloudInit and
// Cdrom-method seed images. Grounded on the Cdrom/"config disk" split
// described in §3; the byte-level ISO layout itself is delegated to
// kdomanski/iso9660. The parent directory of destPath is created if needed.
func WriteISO(destPath string, files map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", filepath.Dir(destPath), err)
	}
	writer, err := iso9660.NewWriter()
	if err != nil {
		return fmt.Errorf("artifact: new iso writer: %w", err)
	}
	defer writer.Cleanup()

	for name, contents := range files {
		if err := writer.AddFile(newByteReader(contents), name); err != nil {
			return fmt.Errorf("artifact: add iso file %q: %w", name, err)
		}
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("artifact: create iso %s: %w", destPath, err)
	}
	defer out.Close()

	if err := writer.WriteTo(out, "ztp"); err != nil {
		return fmt.Errorf("artifact: write iso %s: %w", destPath, err)
	}
	return nil
}

// WriteFATImage creates a blank FAT-formatted raw disk image of sizeMiB
// at destPath and copies files into its root, the collaborator behind
// Disk-method ZTP (classic Cisco IOS) and USB-method config injection.
// The parent directory of destPath is created if needed.
func WriteFATImage(destPath string, sizeMiB int64, files map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("artifact: mkdir %s: %w", filepath.Dir(destPath), err)
	}
	d, err := diskfs.Create(destPath, sizeMiB*1024*1024, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("artifact: create disk image %s: %w", destPath, err)
	}

	fs, err := d.CreateFilesystem(disk.FilesystemSpec{Partition: 0, FSType: diskfilesystem.TypeFat32})
	if err != nil {
		return fmt.Errorf("artifact: format disk image %s: %w", destPath, err)
	}

	for name, contents := range files {
		f, err := fs.OpenFile(name, os.O_CREATE|os.O_RDWR)
		if err != nil {
			return fmt.Errorf("artifact: open %q on disk image: %w", name, err)
		}
		if _, err := f.Write(contents); err != nil {
			f.Close()
			return fmt.Errorf("artifact: write %q on disk image: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("artifact: close %q on disk image: %w", name, err)
		}
	}
	return nil
}

// WriteExt4Image creates a blank ext4-formatted raw disk image of sizeMiB
// at destPath, labeled label, and copies files into its root — the
// ext4 image-copy collaborator of §4.3/§6 backing the Flatcar Ignition
// data disk (its storage.filesystems entry declares format "ext4").
func WriteExt4Image(destPath string, sizeMiB int64, label string, files map[string][]byte) error {
	d, err := diskfs.Create(destPath, sizeMiB*1024*1024, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return fmt.Errorf("artifact: create disk image %s: %w", destPath, err)
	}

	fs, err := d.CreateFilesystem(disk.FilesystemSpec{Partition: 0, FSType: diskfilesystem.TypeExt4, VolumeLabel: label})
	if err != nil {
		return fmt.Errorf("artifact: format ext4 disk image %s: %w", destPath, err)
	}

	for name, contents := range files {
		f, err := fs.OpenFile(name, os.O_CREATE|os.O_RDWR)
		if err != nil {
			return fmt.Errorf("artifact: open %q on ext4 disk image: %w", name, err)
		}
		if _, err := f.Write(contents); err != nil {
			f.Close()
			return fmt.Errorf("artifact: write %q on ext4 disk image: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("artifact: close %q on ext4 disk image: %w", name, err)
		}
	}
	return nil
}

type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
