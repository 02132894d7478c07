package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mogaika/bvh_player/bvh"
	"github.com/mogaika/bvh_player/config"
	"github.com/mogaika/bvh_player/player"
	"github.com/mogaika/bvh_player/status"
	"github.com/mogaika/bvh_player/utils"
	"github.com/mogaika/bvh_player/web"
)

var (
	configPath string
	logLevel   string
	encoding   string
	noConvert  bool
)

var rootCmd = &cobra.Command{
	Use:           "bvh_player",
	Short:         "Biovision motion capture player",
	Long:          "Parses BVH motion capture files, computes joint poses and serves them over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve <file.bvh>",
	Short: "Serve poses of a motion file over HTTP and websockets",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringVar(&encoding, "encoding", "", "Charmap used to decode motion files")
	pf.BoolVar(&noConvert, "no-convert", false, "Keep root translation in file units instead of metres")

	f := serveCmd.Flags()
	f.StringP("addr", "i", "", "Address of server")
	f.Bool("watch", false, "Reload the file when it changes on disk")
	f.Bool("no-loop", false, "Clamp at the last frame instead of looping")
	f.String("static", "", "Directory with static web files")
	f.String("export-dir", "", "Directory for exported poses")

	rootCmd.AddCommand(serveCmd, dumpCmd, sampleCmd, exportCmd, checkCmd, configCmd)
}

// loadSettings merges the config file with command line overrides and
// configures logging and text encoding from the result.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if encoding != "" {
		cfg.Encoding = encoding
	}
	if noConvert {
		cfg.ConvertUnits = false
	}

	flags := cmd.Flags()
	if flags.Lookup("addr") != nil {
		if v, _ := flags.GetString("addr"); v != "" {
			cfg.Addr = v
		}
		if flags.Changed("watch") {
			cfg.Watch, _ = flags.GetBool("watch")
		}
		if v, _ := flags.GetBool("no-loop"); v {
			cfg.Loop = false
		}
		if v, _ := flags.GetString("static"); v != "" {
			cfg.StaticDir = v
		}
		if v, _ := flags.GetString("export-dir"); v != "" {
			cfg.ExportDir = v
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if err := utils.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil); err != nil {
		return cfg, err
	}
	if err := cfg.Apply(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseOptions(cfg config.Config) bvh.Options {
	return bvh.Options{
		ConvertUnits: cfg.ConvertUnits,
		Charmap:      config.GetEncoding(),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	session, err := player.Load(args[0], parseOptions(cfg), cfg.Loop)
	if err != nil {
		return err
	}

	hub := status.NewHub()
	hub.Info("loaded %s", filepath.Base(args[0]))
	session.OnReload(func(s *player.Session) {
		m := s.Motion()
		hub.Info("reloaded %s: %d frames", filepath.Base(s.Path()), m.Frames)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.NewServer(session, hub, cfg).Run(ctx)
	})
	if cfg.Watch {
		g.Go(func() error {
			return session.Watch(ctx)
		})
	}
	return g.Wait()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("bvh_player failed")
		log.Debug().Msgf("%+v", err)
		os.Exit(1)
	}
}
