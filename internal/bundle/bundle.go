package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/appstash/appstash/internal/core"
	"github.com/ulikunitz/xz"
)

// FormatVersion is the current bundle schema version
const FormatVersion = 1

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Bundle is a portable snapshot of package metadata. It captures intent
// (what to reinstall and from where), not the installed artifacts: the
// records carry their original source references so placement can be
// re-run on the target system.
type Bundle struct {
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Packages  []core.PackageRecord `json:"packages"`
}

// New creates a bundle for the given records
func New(records []core.PackageRecord) *Bundle {
	return &Bundle{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Packages:  records,
	}
}

// Write serializes the bundle to path. The payload is xz-compressed when
// compress is set or the destination carries an .xz suffix.
func Write(path string, b *Bundle, compress bool) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create bundle directory: %w", err)
		}
	}

	if compress || strings.HasSuffix(path, ".xz") {
		var buf bytes.Buffer
		xw, err := xz.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("create xz writer: %w", err)
		}
		if _, err := xw.Write(data); err != nil {
			return fmt.Errorf("compress bundle: %w", err)
		}
		if err := xw.Close(); err != nil {
			return fmt.Errorf("finish xz stream: %w", err)
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	return nil
}

// Read deserializes a bundle from path, transparently decompressing
// xz payloads detected by magic bytes.
func Read(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	if bytes.HasPrefix(data, xzMagic) {
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		data, err = io.ReadAll(xr)
		if err != nil {
			return nil, fmt.Errorf("decompress bundle: %w", err)
		}
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}

	if b.Version > FormatVersion {
		return nil, fmt.Errorf("bundle %s uses unsupported format version %d", path, b.Version)
	}

	return &b, nil
}
