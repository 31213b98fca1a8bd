//go:build !cgo

package core

func cgoDriverError(error) (code, message string, ok bool) {
	return "", "", false
}
