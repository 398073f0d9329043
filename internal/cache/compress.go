package cache

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Durable tier value layout:
//
//	[1]  flags (bit 0: payload is gzip-compressed)
//	[8]  createdAt, unix nanoseconds, big endian
//	[8]  ttl, nanoseconds, big endian
//	[..] payload
const (
	headerLen      = 1 + 8 + 8
	flagCompressed = 1 << 0
)

// encodeEntry serializes a value for the durable tier, compressing the
// payload when it exceeds threshold bytes.
func encodeEntry(value []byte, createdAt time.Time, ttl time.Duration, threshold int) ([]byte, error) {
	var flags byte
	payload := value
	if threshold > 0 && len(value) > threshold {
		compressed, err := gzipBytes(value)
		if err != nil {
			return nil, fmt.Errorf("compress entry: %w", err)
		}
		// Keep the original if compression did not help.
		if len(compressed) < len(value) {
			payload = compressed
			flags |= flagCompressed
		}
	}

	buf := make([]byte, headerLen+len(payload))
	buf[0] = flags
	binary.BigEndian.PutUint64(buf[1:9], uint64(createdAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[9:17], uint64(ttl))
	copy(buf[headerLen:], payload)
	return buf, nil
}

// decodeEntry reverses encodeEntry, inflating the payload if flagged.
func decodeEntry(raw []byte) (value []byte, createdAt time.Time, ttl time.Duration, err error) {
	if len(raw) < headerLen {
		return nil, time.Time{}, 0, fmt.Errorf("decode entry: short record (%d bytes)", len(raw))
	}
	flags := raw[0]
	createdAt = time.Unix(0, int64(binary.BigEndian.Uint64(raw[1:9])))
	ttl = time.Duration(binary.BigEndian.Uint64(raw[9:17]))
	payload := raw[headerLen:]

	if flags&flagCompressed != 0 {
		value, err = gunzipBytes(payload)
		if err != nil {
			return nil, time.Time{}, 0, fmt.Errorf("decompress entry: %w", err)
		}
		return value, createdAt, ttl, nil
	}

	value = make([]byte, len(payload))
	copy(value, payload)
	return value, createdAt, ttl, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
