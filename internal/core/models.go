package core

import "time"

// SourceKind classifies the main executable of a package
type SourceKind string

const (
	SourceKindAppImage SourceKind = "appimage"
	SourceKindELF      SourceKind = "elf"
	SourceKindScript   SourceKind = "script"
	SourceKindUnknown  SourceKind = "unknown"
)

// PackageRecord is one entry in the registry, describing an installed program.
// Paths under the package directory are stored relative to it; IconPath is
// absolute once installed. The Source* fields keep the original locations the
// files were copied from, so a backup can recreate the install elsewhere.
type PackageRecord struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	GenericName     string     `json:"generic_name,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	ExecutablePath  string     `json:"executable_path"`
	AdditionalFiles []string   `json:"additional_files,omitempty"`
	IconPath        string     `json:"icon_path,omitempty"`
	Categories      []string   `json:"categories,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
	Terminal        bool       `json:"terminal"`
	Kind            SourceKind `json:"kind,omitempty"`

	SourceExecutable string    `json:"source_executable"`
	SourceAdditional []string  `json:"source_additional_files,omitempty"`
	SourceIcon       string    `json:"source_icon,omitempty"`
	InstallDate      time.Time `json:"install_date"`
}

// InstallRequest is the validated input for one install operation. All paths
// reference the source filesystem; the engine resolves in-store locations.
type InstallRequest struct {
	ID              string
	Name            string
	GenericName     string
	Comment         string
	ExecutablePath  string
	AdditionalFiles []string
	IconPath        string
	Categories      []string
	Keywords        []string
	Terminal        bool
	Replace         bool
}

// DeinstallRequest identifies a package to remove.
type DeinstallRequest struct {
	ID string
}

// BackupRequest selects records to snapshot. Empty IDs means all.
type BackupRequest struct {
	IDs         []string
	Destination string
	Compress    bool
}

// BackupWarning reports a non-fatal per-record condition found while
// building a bundle, e.g. a source file that is no longer reachable.
type BackupWarning struct {
	ID     string
	Source string
	Err    error
}

// ReinstallResult is the per-record outcome of a bundle reinstall.
type ReinstallResult struct {
	ID  string
	Err error
}

// ProgressEvent reports incremental copy progress to the presentation layer.
// Advisory only; consumers must not rely on it for correctness.
type ProgressEvent struct {
	PackageID  string
	File       string
	Bytes      int64
	TotalBytes int64
	FilesDone  int
	FilesTotal int
}

// DesktopEntry represents a .desktop file
type DesktopEntry struct {
	Type        string
	Name        string
	GenericName string
	Comment     string
	Exec        string
	Icon        string
	Categories  []string
	Keywords    []string
	Terminal    bool
}

// Exit codes returned by the appstash process
const (
	ExitSuccess         = 0
	ExitGeneral         = 1
	ExitInvalidArgs     = 2
	ExitInstallFailed   = 3
	ExitDeinstallFailed = 4
	ExitRegistry        = 5
	ExitFilesystem      = 6
	ExitInterrupted     = 130
)
