package icons

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format
	_ "image/jpeg" // Register JPEG format
	_ "image/png"  // Register PNG format
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // Register BMP format
	_ "golang.org/x/image/tiff" // Register TIFF format
	_ "golang.org/x/image/webp" // Register WebP format

	"github.com/appstash/appstash/internal/helpers"
)

var rasterExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tiff": true, ".webp": true, ".ico": true,
}

// CopyFunc copies src to dst. Stage falls back to helpers.CopyFile when
// nil; callers tracking copy progress supply their own.
type CopyFunc func(src, dst string) error

// Stage copies the icon into the package directory as <id><ext> and returns
// the absolute installed path. Raster icons that fail to decode are rejected
// up front so a broken image never ends up referenced by a desktop entry.
func Stage(srcPath, id, packageDir string, copyFile CopyFunc) (string, error) {
	if copyFile == nil {
		copyFile = helpers.CopyFile
	}
	if _, err := os.Stat(srcPath); err != nil {
		return "", fmt.Errorf("icon not found: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(srcPath))
	if rasterExts[ext] && ext != ".ico" {
		if err := checkDecodable(srcPath); err != nil {
			return "", fmt.Errorf("icon %s is not a valid image: %w", srcPath, err)
		}
	}

	dstPath := filepath.Join(packageDir, id+filepath.Ext(srcPath))
	if err := copyFile(srcPath, dstPath); err != nil {
		return "", fmt.Errorf("copy icon: %w", err)
	}

	abs, err := filepath.Abs(dstPath)
	if err != nil {
		return dstPath, nil
	}
	return abs, nil
}

// Dimensions reads the pixel dimensions of a raster icon as "WxH", or ""
// when they cannot be determined (SVG, unreadable file).
func Dimensions(iconPath string) string {
	ext := strings.ToLower(filepath.Ext(iconPath))
	if ext == ".svg" {
		return "scalable"
	}
	if !rasterExts[ext] {
		return ""
	}

	file, err := os.Open(iconPath)
	if err != nil {
		return ""
	}
	defer file.Close()

	// Decode only the config (dimensions) without loading the full image
	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%dx%d", config.Width, config.Height)
}

func checkDecodable(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, _, err = image.DecodeConfig(file)
	return err
}
