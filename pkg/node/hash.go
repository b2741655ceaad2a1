package node

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/abworrall/rawload/pkg/rawerr"
)

// ContentHash is the hex SHA-256 of the file's bytes; the host compares
// it between runs to decide whether to reload.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", rawerr.New(rawerr.UnreadableFile, "node.ContentHash", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", rawerr.New(rawerr.UnreadableFile, "node.ContentHash", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
