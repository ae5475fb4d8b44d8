// Package validator performs pre-flight checks on uploaded documents
// before they enter the processing pipeline.
package validator

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors let the HTTP layer map failures to status codes.
var (
	// ErrUnsupportedType indicates a file extension outside the accepted set.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge indicates a file over the configured size limit.
	ErrTooLarge = errors.New("file too large")

	// ErrUnreadable indicates a missing, irregular, or unreadable file.
	ErrUnreadable = errors.New("file not readable")
)

// Validator checks uploaded documents against format and size constraints.
type Validator struct {
	extensions map[string]bool
	maxBytes   int64
}

// New creates a Validator accepting the given extensions (with leading dot,
// case-insensitive) and files up to maxSizeMB megabytes.
func New(extensions []string, maxSizeMB int) *Validator {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Validator{
		extensions: exts,
		maxBytes:   int64(maxSizeMB) * 1024 * 1024,
	}
}

// Validate checks the file at path. Checks run in order and the first
// failure wins: existence, regular file, extension, size, readability.
func (v *Validator) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreadable, path)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: not a regular file: %s", ErrUnreadable, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !v.extensions[ext] {
		return fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedType, ext, v.acceptedList())
	}

	if info.Size() > v.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, info.Size(), v.maxBytes)
	}

	// Read the first KiB to catch permission and truncation problems early.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreadable, path)
	}
	defer f.Close()

	buf := make([]byte, 1024)
	if _, err := f.Read(buf); err != nil && err != io.EOF {
		return fmt.Errorf("%w: read failed: %s", ErrUnreadable, path)
	}

	return nil
}

// ValidateName checks only the filename extension. Used by the upload
// handler before the body is written to disk.
func (v *Validator) ValidateName(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !v.extensions[ext] {
		return fmt.Errorf("%w: %q (accepted: %s)", ErrUnsupportedType, ext, v.acceptedList())
	}
	return nil
}

// MaxBytes returns the configured size limit in bytes.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

func (v *Validator) acceptedList() string {
	exts := make([]string, 0, len(v.extensions))
	for e := range v.extensions {
		exts = append(exts, e)
	}
	// Stable order for error messages.
	for i := 1; i < len(exts); i++ {
		for j := i; j > 0 && exts[j] < exts[j-1]; j-- {
			exts[j], exts[j-1] = exts[j-1], exts[j]
		}
	}
	return strings.Join(exts, ", ")
}
