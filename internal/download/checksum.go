package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
)

// maxChecksumListing bounds how much of a checksum listing is read.
const maxChecksumListing = 1 << 20

var checksumPattern = regexp.MustCompile(`(?i)\b([a-f0-9]{64})\b`)

// ChecksumError reports a file whose sha256 does not match the expected one.
type ChecksumError struct {
	Expected string
	Actual   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func normalizeChecksum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// compare returns a *ChecksumError when expected is set and differs from
// the hex encoding of sum.
func compare(expected string, sum []byte) error {
	actual := hex.EncodeToString(sum)
	if expected == "" || actual == expected {
		return nil
	}
	return &ChecksumError{Expected: expected, Actual: actual}
}

// ResolveExpectedChecksum fetches a checksum listing and picks the entry for
// fileName.
func ResolveExpectedChecksum(ctx context.Context, checksumURL, fileName string, client *http.Client) (string, error) {
	if strings.TrimSpace(checksumURL) == "" {
		return "", errors.New("checksum URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: checksumTimeout}
	}

	resp, err := get(ctx, client, checksumURL, defaultUserAgent)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxChecksumListing))
	if err != nil {
		return "", fmt.Errorf("read checksum listing: %w", err)
	}
	return ParseChecksum(content, fileName)
}

// ParseChecksum finds a sha256 in a checksum listing, preferring the line
// that names fileName. A bare digest file matches any name.
func ParseChecksum(content []byte, fileName string) (string, error) {
	var fallback string
	for _, line := range strings.Split(string(content), "\n") {
		match := checksumPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if fileName != "" && strings.Contains(line, fileName) {
			return strings.ToLower(match[1]), nil
		}
		if fallback == "" {
			fallback = strings.ToLower(match[1])
		}
	}
	if fallback == "" {
		return "", errors.New("sha256 checksum not found")
	}
	return fallback, nil
}

// VerifyFileChecksum hashes the file at path. An empty expected checksum
// accepts any content.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := normalizeChecksum(expectedSHA256)
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	return compare(expected, h.Sum(nil))
}
