package logs

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Cursors are opaque to clients. Internally they carry the sequence number
// the previous page stopped at, so pagination stays stable while new
// entries arrive.

func encodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte("seq:" + strconv.FormatInt(seq, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	s := string(raw)
	if !strings.HasPrefix(s, "seq:") {
		return 0, fmt.Errorf("malformed cursor")
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(s, "seq:"), 10, 64)
	if err != nil || seq < 1 {
		return 0, fmt.Errorf("malformed cursor")
	}
	return seq, nil
}
