package main

import (
	"github.com/hupe1980/vecflat/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the loaded configuration to subcommands.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "vecflat",
		Short:         "Maintain exact inner-product vector index snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./vecflat.yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("compression", "none", "snapshot compression for writes (none, lz4, zstd)")
	flags.Bool("mmap", false, "read snapshot files through a memory mapping")
	flags.Int64("memory-limit", 0, "maximum bytes of vector data, 0 for unlimited")
	flags.String("store", "local", "blob store for push/pull (local, s3, minio, bolt, sqlite)")
	flags.String("store-path", ".", "directory or database file of the local, bolt and sqlite stores")
	flags.String("bucket", "", "bucket of the s3 and minio stores")

	for key, flag := range map[string]string{
		"log_level":    "log-level",
		"compression":  "compression",
		"mmap":         "mmap",
		"memory_limit": "memory-limit",
		"store.kind":   "store",
		"store.path":   "store-path",
		"store.bucket": "bucket",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		newCreateCmd(a),
		newAddCmd(a),
		newSearchCmd(a),
		newInfoCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newListCmd(a),
	)
	return rootCmd
}
