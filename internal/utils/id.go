package utils

import (
	"crypto/sha256"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateNanoID returns a random lowercase alphanumeric id of the given size.
func GenerateNanoID(size int) string {
	id, err := gonanoid.Generate(idAlphabet, size)
	if err != nil {
		panic(err)
	}
	return id
}

func GenerateNanoIDWithPrefix(prefix string, size int) string {
	return fmt.Sprintf("%s_%s", prefix, GenerateNanoID(size))
}

// ContentFingerprint hashes raw message bytes; used as a dedup key when a
// message carries no Message-ID header.
func ContentFingerprint(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", hash)
}

func Now() time.Time {
	return time.Now().UTC()
}
