package filestore

import (
	"net/http"
	"strings"

	"github.com/koustreak/stellars3/internal/errs"
)

// Method is an HTTP method a presigned URL may authorise.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

// ParseMethod normalises m and rejects anything but GET, PUT and DELETE.
func ParseMethod(m string) (Method, error) {
	switch Method(strings.ToUpper(m)) {
	case MethodGet:
		return MethodGet, nil
	case MethodPut:
		return MethodPut, nil
	case MethodDelete:
		return MethodDelete, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput, "unsupported HTTP method: %s", m)
}
