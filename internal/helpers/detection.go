package helpers

import (
	"bytes"
	"debug/elf"
	"io"
	"os"

	"github.com/appstash/appstash/internal/core"
)

// DetectSourceKind classifies an executable by magic bytes. Detection is
// best-effort; unreadable or unrecognized files are reported as unknown.
func DetectSourceKind(filePath string) core.SourceKind {
	f, err := os.Open(filePath)
	if err != nil {
		return core.SourceKindUnknown
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return core.SourceKindUnknown
	}
	header = header[:n]

	// ELF magic: 0x7F 'E' 'L' 'F'
	if len(header) >= 4 && bytes.Equal(header[:4], []byte{0x7F, 'E', 'L', 'F'}) {
		if ok, _ := hasSquashFS(f); ok {
			return core.SourceKindAppImage
		}
		return core.SourceKindELF
	}

	// Shell script magic: #!
	if len(header) >= 2 && bytes.Equal(header[:2], []byte{'#', '!'}) {
		return core.SourceKindScript
	}

	return core.SourceKindUnknown
}

// IsELF checks if a file is a valid ELF executable
func IsELF(filePath string) (bool, error) {
	f, err := elf.Open(filePath)
	if err != nil {
		return false, nil // Not an ELF file, not an error
	}
	defer f.Close()

	return f.Type == elf.ET_EXEC || f.Type == elf.ET_DYN, nil
}

// IsAppImage checks if a file is an AppImage
func IsAppImage(filePath string) (bool, error) {
	isElf, err := IsELF(filePath)
	if err != nil || !isElf {
		return false, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	return hasSquashFS(f)
}

func hasSquashFS(f *os.File) (bool, error) {
	// squashfs magic: "hsqs" (little-endian) or "sqsh" (big-endian)
	// AppImages embed squashfs at various offsets, scan incrementally to find it
	const maxScan = 2 * 1024 * 1024 // 2MB
	const chunkSize = 8192

	buf := make([]byte, chunkSize)
	magicLE := []byte{'h', 's', 'q', 's'}
	magicBE := []byte{'s', 'q', 's', 'h'}

	for offset := int64(0); offset < maxScan; offset += int64(chunkSize) {
		if _, err := f.Seek(offset, 0); err != nil {
			break
		}

		n, err := f.Read(buf)
		if err != nil {
			if err == io.EOF {
				break
			}
			continue
		}
		if n < 4 {
			break
		}

		for i := 0; i <= n-4; i++ {
			if bytes.Equal(buf[i:i+4], magicLE) || bytes.Equal(buf[i:i+4], magicBE) {
				return true, nil
			}
		}
	}

	return false, nil
}

// IsExecutable checks if a file has execute permissions
func IsExecutable(filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return false, err
	}

	return info.Mode()&0111 != 0, nil
}

// MakeExecutable sets the executable bit on a file
func MakeExecutable(filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return err
	}

	return os.Chmod(filePath, info.Mode()|0111)
}
