//go:build cgo

package core

import (
	"errors"
	"strconv"

	"github.com/mattn/go-sqlite3"
)

func cgoDriverError(err error) (code, message string, ok bool) {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return strconv.Itoa(int(liteErr.ExtendedCode)), liteErr.Error(), true
	}
	return "", "", false
}
