package models

import (
	"sort"
	"strings"
)

// UploadDescriptor describes one uploaded file waiting in the temporary upload
// directory. It is created by the intake layer (HTTP, GCS, CLI) and consumed by
// the ingest pipeline, which moves TempPath into the archive on success.
type UploadDescriptor struct {
	TempPath     string
	FileName     string
	OriginalName string
	ContentType  string
	Size         int64
}

// ConversionRule is the per-extension archive policy.
type ConversionRule struct {
	// OfficeConversion routes the file through the office converter instead of
	// the image converter.
	OfficeConversion bool `mapstructure:"officeConversion" yaml:"officeConversion" json:"officeConversion"`
	// UseOriginalAsMaster keeps the uploaded format as the master and discards
	// the intermediate PDF. Otherwise the PDF is the master.
	UseOriginalAsMaster bool `mapstructure:"useOriginalAsMaster" yaml:"useOriginalAsMaster" json:"useOriginalAsMaster"`
}

// ExtensionPolicy maps a lower-case extension (no leading dot) to its rule.
type ExtensionPolicy map[string]ConversionRule

// Lookup returns the rule for ext, matching case-insensitively.
func (p ExtensionPolicy) Lookup(ext string) (ConversionRule, bool) {
	rule, ok := p[strings.ToLower(ext)]
	return rule, ok
}

// Extensions returns the allowed extensions in sorted order.
func (p ExtensionPolicy) Extensions() []string {
	exts := make([]string, 0, len(p))
	for ext := range p {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
