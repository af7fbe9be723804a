package main

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/config"
)

var configOpts struct {
	path bool
	init bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().BoolVar(&configOpts.path, "path", false,
		"Print the config file path instead")
	configCmd.Flags().BoolVar(&configOpts.init, "init", false,
		"Write the effective configuration to the config file if it does not exist")
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := globalOpts.configPath
	if path == "" {
		path = config.ConfigPath()
	}

	if configOpts.path {
		fmt.Println(path)
		return nil
	}

	if configOpts.init {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Println("wrote", path)
		return nil
	}

	enc := toml.NewEncoder(os.Stdout)
	return enc.Encode(cfg)
}
