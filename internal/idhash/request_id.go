package idhash

import (
	"encoding/hex"
	"fmt"

	"github.com/minio/sha256-simd"
)

// ComputeBodyHash returns the hex SHA256 of a request body.
// An empty body hashes like any other input.
func ComputeBodyHash(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// ComputeRequestID computes a deterministic request_id using SHA256.
// Formula: SHA256(account|method|path|body_hash|timestamp_ms)
// Returns hex-encoded hash (64 characters). The request_id is the message an
// account signs to authorize an API call.
func ComputeRequestID(
	account string,
	method string,
	path string,
	bodyHash string,
	timestampMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		account,
		method,
		path,
		bodyHash,
		timestampMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
