package http

import (
	"net/http"
	"strconv"
	"strings"

	"carrental/pkg/config"
	apperrors "carrental/pkg/errors"
)

// RequesterIDHeader carries the authenticated caller identity, set by the gateway.
const RequesterIDHeader = "X-Requester-ID"

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

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

func RequesterID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(RequesterIDHeader))
}
