package generator

import (
	"crypto/sha256"
	"fmt"
)

// FileSize is the size of every generated file
const FileSize = 1024

// ComputeChecksum computes a SHA256 checksum for the given data
func ComputeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// GenerateFileData generates FileSize bytes of printable text and returns both
// the data and its checksum
func GenerateFileData(rng *RNG) ([]byte, string) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 \n"

	data := make([]byte, FileSize)
	for i := range data {
		data[i] = alphabet[rng.Intn(len(alphabet))]
	}

	checksum := ComputeChecksum(data)
	return data, checksum
}
