// Package sink holds helpers shared by the collector storage backends in
// its subpackages.
package sink

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/coral-collect/pkg/collector"
)

// Digest returns the hex-encoded xxh3-64 hash of a dataset.
func Digest(data collector.Dataset) string {
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxh3.Hash(data))
	return hex.EncodeToString(sum[:])
}
