package kv

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Backends that cannot expire a key on their own (memory, groupcache, a nats
// bucket without MaxAge) store TTL'd values sealed with their deadline.
// Readers treat a sealed value past its deadline as a miss.
const sealPrefix = "SVTTL2:"

type sealed struct {
	Value    []byte `json:"v"`
	Deadline int64  `json:"d"` // unix milliseconds
}

// sealTTL wraps value with a deadline ttl after now. Values without a ttl are
// stored as is and never expire.
func sealTTL(value []byte, ttl time.Duration, now time.Time) ([]byte, error) {
	if ttl <= 0 {
		return value, nil
	}

	b, err := sonic.Marshal(sealed{Value: value, Deadline: now.Add(ttl).UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("seal kv value: %w", err)
	}

	return append([]byte(sealPrefix), b...), nil
}

// openTTL returns the stored value; live is false once its deadline passed.
func openTTL(stored []byte, now time.Time) (value []byte, live bool, err error) {
	if !bytes.HasPrefix(stored, []byte(sealPrefix)) {
		return stored, true, nil
	}

	var s sealed
	if err := sonic.Unmarshal(stored[len(sealPrefix):], &s); err != nil {
		return nil, false, fmt.Errorf("open kv value: %w", err)
	}

	if now.UnixMilli() >= s.Deadline {
		return nil, false, nil
	}

	return s.Value, true, nil
}
