package workspace

import (
	"bytes"
	"path/filepath"
	"strings"
)

// binarySampleSize is how much of a file is inspected for binary content.
const binarySampleSize = 512

// Extensions that are never source text.
var binaryExtensions = map[string]struct{}{
	// fonts
	".woff": {}, ".woff2": {}, ".ttf": {}, ".otf": {}, ".eot": {},
	// images (svg is XML, not listed)
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {}, ".tiff": {}, ".tif": {},
	// archives
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {}, ".7z": {}, ".rar": {}, ".jar": {}, ".war": {},
	// objects and executables
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {}, ".o": {}, ".obj": {}, ".bin": {},
	// media
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {}, ".flac": {}, ".ogg": {},
	// documents and databases
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".db": {}, ".sqlite": {}, ".sqlite3": {},
	// bytecode
	".pyc": {}, ".pyo": {}, ".class": {}, ".pickle": {}, ".pkl": {},
}

var magicNumbers = [][]byte{
	{0x1F, 0x8B},             // gzip
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x50, 0x4B, 0x05, 0x06}, // empty zip
	{0x89, 0x50, 0x4E, 0x47}, // png
	{0xFF, 0xD8, 0xFF},       // jpeg
	{0x47, 0x49, 0x46, 0x38}, // gif
	{0x25, 0x50, 0x44, 0x46}, // pdf
	{0x7F, 0x45, 0x4C, 0x46}, // elf
	{0x4D, 0x5A},             // dos/windows executable
	{0xCA, 0xFE, 0xBA, 0xBE}, // mach-o fat binary, java class
	{0x77, 0x4F, 0x46, 0x46}, // woff
	{0x77, 0x4F, 0x46, 0x32}, // woff2
}

// IsBinaryPath reports whether path has an extension that is never text.
func IsBinaryPath(path string) bool {
	_, ok := binaryExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsBinaryContent sniffs the start of a file: known magic numbers, any NUL
// bytes beyond 1% of the sample, or mostly control characters.
func IsBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	sample := content[:min(len(content), binarySampleSize)]

	for _, magic := range magicNumbers {
		if bytes.HasPrefix(sample, magic) {
			return true
		}
	}

	nul, control := 0, 0
	for _, b := range sample {
		if b == 0 {
			nul++
		}
		// Bytes >= 0x80 may be UTF-8 and are not counted.
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return nul > len(sample)/100 || control > len(sample)*30/100
}
