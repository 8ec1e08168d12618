package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaos-io/brandcam/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "brandcam",
	Short:         "Branded virtual backgrounds and live camera compositing",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BRANDCAM_CONFIG"), "path to a JSON config file")

	rootCmd.AddCommand(serveCmd, composeCmd, compositeCmd, profileCmd)
	profileCmd.AddCommand(profileShowCmd, profileSetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup 加载配置并初始化日志，返回的 cleanup 在命令结束时调用
func setup() (config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger, cleanup, err := config.ConfigureLogging(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}
