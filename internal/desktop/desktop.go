package desktop

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/appstash/appstash/internal/core"
)

// EntryPath returns the desktop entry path for a package ID
func EntryPath(desktopDir, id string) string {
	return filepath.Join(desktopDir, id+".desktop")
}

// EntryFor renders a package record into its desktop entry. The mapping is
// deterministic and total: every record field maps to exactly one key, and
// Exec is the absolute resolved executable path inside the package store.
func EntryFor(rec *core.PackageRecord, packagesDir string) *core.DesktopEntry {
	return &core.DesktopEntry{
		Type:        "Application",
		Name:        rec.Name,
		GenericName: rec.GenericName,
		Comment:     rec.Comment,
		Exec:        filepath.Join(packagesDir, rec.ID, rec.ExecutablePath),
		Icon:        rec.IconPath,
		Categories:  rec.Categories,
		Keywords:    rec.Keywords,
		Terminal:    rec.Terminal,
	}
}

// Write writes a desktop entry document to a writer. Multi-valued keys use
// the format's semicolon-terminated list convention; Terminal is always
// emitted as true/false.
func Write(w io.Writer, de *core.DesktopEntry) error {
	// Buffering collects the write error once at Flush, so a full disk is
	// reported instead of leaving a truncated entry behind as a success
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "[Desktop Entry]")
	fmt.Fprintf(bw, "Type=%s\n", de.Type)
	fmt.Fprintf(bw, "Name=%s\n", de.Name)

	if de.GenericName != "" {
		fmt.Fprintf(bw, "GenericName=%s\n", de.GenericName)
	}
	if de.Comment != "" {
		fmt.Fprintf(bw, "Comment=%s\n", de.Comment)
	}

	fmt.Fprintf(bw, "Exec=%s\n", de.Exec)

	if de.Icon != "" {
		fmt.Fprintf(bw, "Icon=%s\n", de.Icon)
	}
	if len(de.Categories) > 0 {
		fmt.Fprintf(bw, "Categories=%s\n", strings.Join(de.Categories, ";")+";")
	}
	if len(de.Keywords) > 0 {
		fmt.Fprintf(bw, "Keywords=%s\n", strings.Join(de.Keywords, ";")+";")
	}
	fmt.Fprintf(bw, "Terminal=%t\n", de.Terminal)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write desktop entry: %w", err)
	}
	return nil
}

// Validate checks if the desktop entry has required fields
func Validate(de *core.DesktopEntry) error {
	if de.Type == "" {
		return fmt.Errorf("Type field is required")
	}
	if de.Name == "" {
		return fmt.Errorf("Name field is required")
	}
	if de.Exec == "" {
		return fmt.Errorf("Exec field is required")
	}
	return nil
}

// WriteFile writes the entry to <desktopDir>/<id>.desktop, overwriting any
// existing file for that ID. The file is created 0755: desktop environments
// require the executable bit to trust the entry.
func WriteFile(desktopDir, id string, de *core.DesktopEntry) (path string, err error) {
	if err := Validate(de); err != nil {
		return "", fmt.Errorf("invalid desktop entry: %w", err)
	}

	if err := os.MkdirAll(desktopDir, 0755); err != nil {
		return "", fmt.Errorf("create desktop files directory: %w", err)
	}

	path = EntryPath(desktopDir, id)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return "", fmt.Errorf("create desktop file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close desktop file: %w", cerr)
		}
	}()

	if err := Write(file, de); err != nil {
		return "", err
	}

	// The file may pre-exist with different permissions
	if err := os.Chmod(path, 0755); err != nil {
		return "", fmt.Errorf("set desktop file permissions: %w", err)
	}

	return path, nil
}

// Remove deletes the desktop entry for id. A missing file is not an error.
func Remove(desktopDir, id string) error {
	if err := os.Remove(EntryPath(desktopDir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove desktop file: %w", err)
	}
	return nil
}

// Parse parses a .desktop file from a reader
func Parse(r io.Reader) (*core.DesktopEntry, error) {
	de := &core.DesktopEntry{}
	scanner := bufio.NewScanner(r)
	inDesktopEntry := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			inDesktopEntry = line == "[Desktop Entry]"
			continue
		}

		if inDesktopEntry && strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			switch key {
			case "Type":
				de.Type = value
			case "Name":
				de.Name = value
			case "GenericName":
				de.GenericName = value
			case "Comment":
				de.Comment = value
			case "Exec":
				de.Exec = value
			case "Icon":
				de.Icon = value
			case "Categories":
				de.Categories = parseSemicolonList(value)
			case "Keywords":
				de.Keywords = parseSemicolonList(value)
			case "Terminal":
				de.Terminal = value == "true"
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan desktop file: %w", err)
	}

	return de, nil
}

// parseSemicolonList parses semicolon-separated list
func parseSemicolonList(value string) []string {
	value = strings.TrimSuffix(value, ";")
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ";")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
