package main

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/strand/internal/api"
	"github.com/samcharles93/strand/internal/generate"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		rps         float64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the completion REST API",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Float64Flag{
				Name:        "rps",
				Usage:       "max accepted requests per second (0 = unlimited)",
				Destination: &rps,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, LoadConfig(), &addr, &rps)
			log := newLog()

			rt, err := loadRuntime(log)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer func() { _ = rt.Close() }()

			eng := &generate.Engine{
				Model: rt.model,
				PadID: rt.tok.PadID(),
				EOSID: rt.tok.EOSID(),
			}
			if eng.PadID < 0 {
				eng.PadID = rt.tok.EOSID()
			}

			service := api.NewInferenceService(rt.tok, eng)
			server := api.NewServer(service, api.ServerConfig{
				ModelName:         modelName(modelPath),
				MaxBatch:          rt.model.MaxBatch(),
				RequestsPerSecond: rps,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
