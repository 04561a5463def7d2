package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/socialbbs/config"
	"github.com/cppla/socialbbs/models"
	"github.com/cppla/socialbbs/utils"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "socialbbs",
		Short:         "Social posting API with validated image uploads",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.json", "path to config.json")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		sweepCmd(&configPath),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, starts logging and opens the database.
func bootstrap(configPath string) (config.AppConfig, *utils.UploadRegistry, error) {
	cfg, err := config.Parse(configPath)
	if err != nil {
		return cfg, nil, err
	}
	config.Set(cfg)

	if err := utils.InitLogger(cfg); err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := config.InitDatabase(cfg, &models.User{}, &models.Post{}, &models.Comment{}, &models.UploadedFile{})
	if err != nil {
		return cfg, nil, err
	}
	return cfg, utils.NewUploadRegistry(db), nil
}
