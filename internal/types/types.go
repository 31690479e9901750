package types

import (
	"time"
)

// Config represents the complete configuration for Mirage
type Config struct {
	Logging LoggingConfig   `json:"logging" yaml:"logging" mapstructure:"logging"`
	API     APIConfig       `json:"api" yaml:"api" mapstructure:"api"`
	Auth    AuthConfig      `json:"auth" yaml:"auth" mapstructure:"auth"`
	Items   ItemStoreConfig `json:"items" yaml:"items" mapstructure:"items"`
	Blobs   BlobStoreConfig `json:"blobs" yaml:"blobs" mapstructure:"blobs"`
	Upload  UploadConfig    `json:"upload" yaml:"upload" mapstructure:"upload"`
	Batch   BatchConfig     `json:"batch" yaml:"batch" mapstructure:"batch"`
	Seed    SeedConfig      `json:"seed" yaml:"seed" mapstructure:"seed"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"required,oneof=text json"`
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"required"`
}

// APIConfig represents the HTTP API configuration
type APIConfig struct {
	Host string `json:"host" yaml:"host" mapstructure:"host" validate:"required"`
	Port int    `json:"port" yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`

	// PublicURL is the externally visible base URL used in uploadUrl values.
	// Empty means derive it from the incoming request.
	PublicURL string `json:"public_url" yaml:"public_url" mapstructure:"public_url" validate:"omitempty,url"`

	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// AuthConfig controls the (token presence only) authorization check
type AuthConfig struct {
	RequireBearer bool `json:"require_bearer" yaml:"require_bearer" mapstructure:"require_bearer"`
}

// ItemStoreConfig selects the Item Store backend
type ItemStoreConfig struct {
	Type string `json:"type" yaml:"type" mapstructure:"type" validate:"required,oneof=duckdb sqlite postgres memory"`
	DSN  string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// BlobStoreConfig selects the Blob Store backend. Only the section matching
// Type is decoded.
type BlobStoreConfig struct {
	Type string         `json:"type" yaml:"type" mapstructure:"type" validate:"required,oneof=fs s3 memory"`
	FS   map[string]any `json:"fs,omitempty" yaml:"fs,omitempty" mapstructure:"fs"`
	S3   map[string]any `json:"s3,omitempty" yaml:"s3,omitempty" mapstructure:"s3"`
}

// UploadConfig configures resumable upload sessions
type UploadConfig struct {
	SessionTTL    time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl" validate:"gt=0"`
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval" validate:"gt=0"`
	MaxChunkSize  int64         `json:"max_chunk_size" yaml:"max_chunk_size" mapstructure:"max_chunk_size" validate:"gt=0"`
	MaxFileSize   int64         `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size" validate:"gtefield=MaxChunkSize"`
	Ledger        string        `json:"ledger" yaml:"ledger" mapstructure:"ledger" validate:"required,oneof=memory badger"`
	LedgerPath    string        `json:"ledger_path" yaml:"ledger_path" mapstructure:"ledger_path"`
}

// BatchConfig configures $batch execution
type BatchConfig struct {
	MaxRequests int  `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests" validate:"min=1,max=100"`
	Concurrent  bool `json:"concurrent" yaml:"concurrent" mapstructure:"concurrent"`
}

// SeedConfig represents the deterministic sample content generated into an
// empty store
type SeedConfig struct {
	Enabled    bool  `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Seed       int64 `json:"seed" yaml:"seed" mapstructure:"seed"`
	Sites      int   `json:"sites" yaml:"sites" mapstructure:"sites" validate:"min=0"`
	MaxDepth   int   `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth" validate:"min=0"`
	MinFolders int   `json:"min_folders" yaml:"min_folders" mapstructure:"min_folders" validate:"min=0"`
	MaxFolders int   `json:"max_folders" yaml:"max_folders" mapstructure:"max_folders" validate:"gtefield=MinFolders"`
	MinFiles   int   `json:"min_files" yaml:"min_files" mapstructure:"min_files" validate:"min=0"`
	MaxFiles   int   `json:"max_files" yaml:"max_files" mapstructure:"max_files" validate:"gtefield=MinFiles"`
	ListItems  int   `json:"list_items" yaml:"list_items" mapstructure:"list_items" validate:"min=0"`
}

// Item represents a node in the content tree: a site, a document library
// (drive), a list, a folder, a file or a list item.
type Item struct {
	ID           string         `json:"id"`
	ParentID     string         `json:"parent_id"`
	DriveID      string         `json:"drive_id"`
	SiteID       string         `json:"site_id"`
	ListID       string         `json:"list_id"`
	Name         string         `json:"name"`
	Path         string         `json:"path"` // drive-relative, "/" for a drive root
	Type         string         `json:"type"`
	Size         int64          `json:"size"`
	MimeType     string         `json:"mime_type"`
	Checksum     string         `json:"checksum"` // sha256 hex of the blob
	BlobPath     string         `json:"blob_path"`
	CreatedAt    time.Time      `json:"created_at"`
	LastModified time.Time      `json:"last_modified"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// IsContainer reports whether the item can hold drive children
func (i *Item) IsContainer() bool {
	return i.Type == ItemTypeFolder || i.Type == ItemTypeDrive
}

// StoreStats represents item counts per type
type StoreStats struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// ItemType constants
const (
	ItemTypeSite     = "site"
	ItemTypeDrive    = "drive"
	ItemTypeList     = "list"
	ItemTypeFolder   = "folder"
	ItemTypeFile     = "file"
	ItemTypeListItem = "listItem"
)

// AllItemTypes lists every item type in display order
var AllItemTypes = []string{
	ItemTypeSite,
	ItemTypeDrive,
	ItemTypeList,
	ItemTypeFolder,
	ItemTypeFile,
	ItemTypeListItem,
}

// Conflict behaviors for uploads and folder creation
const (
	ConflictFail    = "fail"
	ConflictReplace = "replace"
	ConflictRename  = "rename"
)

// ValidConflictBehavior reports whether b is one of the supported policies
func ValidConflictBehavior(b string) bool {
	switch b {
	case ConflictFail, ConflictReplace, ConflictRename:
		return true
	}
	return false
}

// RootPath is the drive-relative path of every drive root
const RootPath = "/"
