package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/socialbbs/routes"
	"github.com/cppla/socialbbs/utils"
)

func sweepCmd(configPath *string) *cobra.Command {
	var ttlMinutes int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete uploads that were never attached to a post or profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer utils.Logger.Sync()

			if ttlMinutes > 0 {
				cfg.UploadOrphanTTLMinutes = ttlMinutes
			}
			store, err := routes.NewStore(cfg)
			if err != nil {
				return err
			}

			total := 0
			for {
				n, err := registry.SweepOrphans(cmd.Context(), store, routes.OrphanTTL(cfg))
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				total += n
				if n == 0 {
					break
				}
			}
			fmt.Printf("removed %d orphaned uploads\n", total)
			return nil
		},
	}
	cmd.Flags().IntVar(&ttlMinutes, "ttl", 0, "override orphan TTL in minutes")
	return cmd
}
