package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/socialbbs/config"
	"github.com/cppla/socialbbs/routes"
	"github.com/cppla/socialbbs/utils"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer utils.Logger.Sync()

			store, err := routes.NewStore(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			r := routes.SetupRouter(cfg, routes.Deps{
				DB:       config.DB(),
				Store:    store,
				Registry: registry,
			})

			utils.StartUploadCleaner(ctx, registry, store,
				time.Duration(cfg.UploadSweepIntervalMinutes)*time.Minute, routes.OrphanTTL(cfg))

			utils.Sugar.Infof("Starting server on port %s (graceful), upload backend %s", cfg.AppPort, cfg.UploadBackend)
			return utils.GraceServer(ctx, ":"+cfg.AppPort, r,
				time.Duration(cfg.ReadTimeoutSec)*time.Second,
				time.Duration(cfg.WriteTimeoutSec)*time.Second)
		},
	}
}
