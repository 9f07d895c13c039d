package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/visit-counter/internal/metrics"
)

const (
	RouteGetVisits  = "GET /visits"
	RoutePostVisits = "POST /visits"
)

// Request is one inbound call, addressed by a route key of the form
// "<METHOD> <path>". Body is the raw request body.
type Request struct {
	RouteKey string
	Body     string
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

type visitsResp struct {
	Visits int64 `json:"visits"`
}

type errorResp struct {
	Error string `json:"error"`
}

// visitReq is carried base64-encoded in the POST body.
type visitReq struct {
	UserHash string `json:"user_hash"`
}

// Handle dispatches req to the matching operation. It never fails: every
// error becomes a 400 response with an {"error": ...} body.
func (r *Recorder) Handle(ctx context.Context, req Request) Response {
	visits, err := r.dispatch(ctx, req)
	kind := KindOf(err)
	metrics.RequestsByRoute.WithLabelValues(routeLabel(req.RouteKey), string(kind)).Inc()

	if err != nil {
		ev := log.Warn()
		if kind == KindStore || kind == KindInconsistentState || kind == KindUnknown {
			ev = log.Error()
		}
		ev.Err(err).Str("route", req.RouteKey).Str("kind", string(kind)).Msg("request failed")
		return ErrorResponse(err)
	}
	return jsonResponse(http.StatusOK, visitsResp{Visits: visits})
}

// ErrorResponse renders err the way Handle does.
func ErrorResponse(err error) Response {
	kind := KindOf(err)
	return jsonResponse(StatusFor(kind), errorResp{Error: publicMessage(err, kind)})
}

func (r *Recorder) dispatch(ctx context.Context, req Request) (int64, error) {
	switch req.RouteKey {
	case RouteGetVisits:
		return r.GetTotalVisits(ctx)
	case RoutePostVisits:
		hash, err := decodeVisit(req.Body)
		if err != nil {
			return 0, err
		}
		return r.RecordVisit(ctx, hash)
	default:
		return 0, unsupportedRoute(req.RouteKey)
	}
}

// decodeVisit extracts user_hash from a base64-encoded JSON body.
func decodeVisit(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrMissingBody
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		// unpadded
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
		if rawErr != nil {
			return "", malformedBody(err)
		}
	}
	var v visitReq
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", malformedBody(err)
	}
	if v.UserHash == "" {
		return "", ErrMissingUserHash
	}
	return v.UserHash, nil
}

// StatusFor maps an outcome to its HTTP status. All failures share 400.
func StatusFor(kind Kind) int {
	if kind == KindOK {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// publicMessage hides store internals from callers.
func publicMessage(err error, kind Kind) string {
	switch kind {
	case KindStore:
		return ErrStoreUnavailable.Error()
	case KindUnknown:
		return "An unknown error occurred"
	default:
		return err.Error()
	}
}

func routeLabel(route string) string {
	switch route {
	case RouteGetVisits, RoutePostVisits:
		return route
	default:
		return "unsupported"
	}
}

func jsonResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"encode response"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}
