package http

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "zivara/pkg/errors"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	GuestIDHeader = "X-Guest-ID"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	return NormalizeLimit(limit), max(0, offset), nil
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	return min(limit, MaxPageLimit)
}

// GuestID returns the opaque guest identifier forwarded by the identity provider.
func GuestID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(GuestIDHeader))
	if id == "" {
		return "", apperrors.Unauthorized("missing " + GuestIDHeader + " header")
	}
	return id, nil
}
