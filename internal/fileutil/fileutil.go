// Package fileutil implements the low-level copy primitives used by the job
// runner.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile streams src to dst, creating parent directories as needed. The
// destination is written with mode 0o644.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	return out.Close()
}

// CopyFileVerified copies src to dst, then re-reads the destination from disk
// and compares size and SHA256 digest against the source. The destination is
// removed on any mismatch so a corrupt copy never survives.
func CopyFileVerified(src, dst string) error {
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := verifyCopy(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// verifyCopy hashes both files independently from disk. Hashing the write
// stream would only re-check bytes already in memory.
func verifyCopy(src, dst string) error {
	srcSum, srcSize, err := digestFile(src)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	dstSum, dstSize, err := digestFile(dst)
	if err != nil {
		return fmt.Errorf("hash destination: %w", err)
	}
	if srcSize != dstSize {
		return fmt.Errorf("size mismatch: source %d bytes, destination %d", srcSize, dstSize)
	}
	if !bytes.Equal(srcSum, dstSum) {
		return fmt.Errorf("hash mismatch after copy of %s", src)
	}
	return nil
}

func digestFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
