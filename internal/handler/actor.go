package handler

import (
	"net/http"
	"strings"
)

// actorHeader carries the acting user's id, set by the gateway in front of
// this service.
const actorHeader = "X-User-ID"

func actorFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(actorHeader))
}
