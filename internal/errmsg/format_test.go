//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpFolderAdd,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpFolderAdd,
			err:      errors.New("file not found"),
			expected: "Failed to add folder: file not found",
		},
		{
			name:     "scan write operation",
			op:       OpScanWrite,
			err:      errors.New("database is locked"),
			expected: "Failed to save scanned tracks: database is locked",
		},
		{
			name:     "duplicates operation",
			op:       OpDuplicates,
			err:      errors.New("disk full"),
			expected: "Failed to detect duplicates: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpFolderAccess,
			context:  "/music",
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with context",
			op:       OpFolderAccess,
			context:  "/music",
			err:      errors.New("permission denied"),
			expected: "Failed to access folder '/music': permission denied",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpFolderAccess,
			context:  "",
			err:      errors.New("permission denied"),
			expected: "Failed to access folder: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		n        int
		singular string
		plural   []string
		expected string
	}{
		{0, "file", nil, "0 files"},
		{1, "file", nil, "1 file"},
		{2, "track", nil, "2 tracks"},
		{12345, "file", nil, "12,345 files"},
		{3, "duplicate group", nil, "3 duplicate groups"},
		{1, "entry", []string{"entries"}, "1 entry"},
		{4, "entry", []string{"entries"}, "4 entries"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := Count(tt.n, tt.singular, tt.plural...); got != tt.expected {
				t.Errorf("Count(%d, %q) = %q, want %q", tt.n, tt.singular, got, tt.expected)
			}
		})
	}
}
