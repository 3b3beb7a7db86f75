package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"image-drop/internal/config"
)

type runFunc func(ctx context.Context, cfg config.Config) error

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"host":       "host",
	"port":       "port",
	"upload-dir": "upload_dir",
	"public-dir": "public_dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"storage":    "storage.backend",
	"rate-limit": "rate_limit",
	"max-upload": "max_upload_bytes",
}

// newRootCmd builds the CLI. run is invoked with the resolved config when
// no subcommand is given.
func newRootCmd(run runFunc) *cobra.Command {
	v := config.NewViper()
	var configFile string

	root := &cobra.Command{
		Use:   "image-drop",
		Short: "Image upload and browse server",
		Long: `image-drop accepts image uploads and lets clients fetch the latest upload
once or step through every upload with next/previous.

Settings come from flags, IMAGEDROP_* environment variables (PORT is also
accepted) and an optional YAML file given with --config.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&configFile, "config", "", "Path to a YAML configuration file")
	flags.String("host", "", "Interface to listen on (empty for all)")
	flags.Int("port", 8080, "Port to listen on")
	flags.String("upload-dir", "uploads", "Directory for uploaded images (disk storage)")
	flags.String("public-dir", "", "Serve static files from this directory instead of the bundled client")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.String("log-file", "server.log", "Also write JSON logs to this file (empty disables)")
	flags.String("storage", config.BackendDisk, "Storage backend (disk, s3)")
	flags.Int("rate-limit", 0, "Requests per minute per client IP (0 disables)")
	flags.Int64("max-upload", 0, "Maximum upload size in bytes (0 for unlimited)")

	if err := bindFlags(v, root); err != nil {
		panic(err) // programming error: flag table out of sync
	}

	root.AddCommand(newVersionCmd())
	return root
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag %q is not defined", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", flag, err)
		}
	}
	return nil
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func getVersionInfo() versionInfo {
	return versionInfo{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := getVersionInfo()
			out := cmd.OutOrStdout()

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("format version info: %w", err)
				}
				_, err = fmt.Fprintln(out, string(output))
				return err
			}

			_, err := fmt.Fprintf(out, "image-drop %s (commit %s, %s, %s)\n",
				info.Version, info.Commit, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Output format (json)")
	return cmd
}
