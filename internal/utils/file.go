package utils

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
)

// FileHash calculates the SHA-1 hash of a file
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha1.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", filePath, err)
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// ContentHash is FileHash for data already in memory
func ContentHash(data []byte) string {
	return fmt.Sprintf("%x", sha1.Sum(data))
}

// WriteTempFile writes data to a new temp file and returns its path.
// The caller owns the file and must remove it.
func WriteTempFile(prefix string, data []byte) (string, error) {
	file, err := os.CreateTemp("", prefix+"-*")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}
