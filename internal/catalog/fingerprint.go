package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FingerprintDir computes the content fingerprint of a session directory.
//
// The fingerprint is a sha256 over one line per regular file: the
// NFC-normalized slash-separated relative path, the file size, and the
// modification time truncated to seconds (sub-second precision is not stable
// across FAT/NFS mounts). Lines are sorted before hashing so the result does
// not depend on walk order.
//
// Hashing file stats rather than contents keeps scans cheap for multi-GB
// imaging stacks; an edited file that keeps identical size and mtime is not
// detected, which matches the opaque-fingerprint contract.
func FingerprintDir(root string) (string, error) {
	var lines []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = norm.NFC.String(filepath.ToSlash(rel))
		lines = append(lines, fmt.Sprintf("%s\x00%d\x00%d", rel, info.Size(), info.ModTime().Unix()))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", root, err)
	}

	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeID returns the NFC form of a session identifier.
func normalizeID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}
