package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/visit-counter/internal/core"
)

// handler serves API Gateway HTTP API events. The recorder, and with it the
// store client, is built on the first invocation and reused by every later
// one in the same execution environment.
type handler struct {
	open func(context.Context) (*core.Recorder, error)

	mu  sync.Mutex
	rec *core.Recorder
}

func (h *handler) recorder(ctx context.Context) (*core.Recorder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rec != nil {
		return h.rec, nil
	}
	rec, err := h.open(ctx)
	if err != nil {
		return nil, err
	}
	h.rec = rec
	return rec, nil
}

func (h *handler) Handle(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var res core.Response
	rec, err := h.recorder(ctx)
	if err != nil {
		log.Error().Err(err).Str("route", ev.RouteKey).Msg("init recorder")
		res = core.ErrorResponse(&core.StoreError{Op: "open store", Err: err})
	} else {
		res = rec.Handle(ctx, core.Request{RouteKey: ev.RouteKey, Body: ev.Body})
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       string(res.Body),
	}, nil
}
