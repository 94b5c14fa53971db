package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UserID identifies an authenticated user. It is the unit of addressing for
// presence and private messages.
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether id can address a user.
func (id UserID) Valid() bool {
	return id > 0
}

// ParseUserID parses a decimal user id.
func ParseUserID(raw string) (UserID, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", raw, err)
	}
	return UserID(v), nil
}

// UnmarshalJSON accepts both 42 and "42"; clients built on loosely typed
// runtimes send either.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseUserID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid user id %s: %w", data, err)
	}
	*id = UserID(v)
	return nil
}
