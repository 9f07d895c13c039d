// Command visitlambda runs the visit counter as an AWS Lambda function behind
// an API Gateway HTTP API with the routes "GET /visits" and "POST /visits".
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"

	"github.com/roniherschmann/visit-counter/internal/config"
	"github.com/roniherschmann/visit-counter/internal/core"
	"github.com/roniherschmann/visit-counter/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	h := &handler{open: func(ctx context.Context) (*core.Recorder, error) {
		s, err := store.Open(ctx, cfg)
		if err != nil {
			return nil, xerrors.Errorf("open %s store: %w", cfg.StoreBackend, err)
		}
		return core.NewRecorder(s), nil
	}}
	lambda.Start(h.Handle)
}
