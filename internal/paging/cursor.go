package paging

import (
	"encoding/base64"
	"encoding/json"

	"github.com/sumandas0/catalog/pkg/utils"
)

type Direction string

const (
	DirectionAfter  Direction = "after"
	DirectionBefore Direction = "before"
)

const cursorFormat = 1

type cursor struct {
	Format    int       `json:"v"`
	Key       string    `json:"k"`
	Direction Direction `json:"d"`
}

// EncodeCursor builds the opaque token handed to clients.
func EncodeCursor(key string, dir Direction) string {
	data, _ := json.Marshal(cursor{Format: cursorFormat, Key: key, Direction: dir})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor returns the sort key carried by token. The token must have been
// issued for the given direction.
func DecodeCursor(token string, dir Direction) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", invalidCursor(dir, err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return "", invalidCursor(dir, err)
	}
	if c.Format != cursorFormat || c.Key == "" || c.Direction != dir {
		return "", invalidCursor(dir, nil)
	}
	return c.Key, nil
}

func invalidCursor(dir Direction, err error) error {
	return utils.NewAppError(utils.CodeInvalidInput, "invalid "+string(dir)+" cursor", err).
		WithDetail("parameter", string(dir))
}
