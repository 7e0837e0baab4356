package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat/internal/agent"
	"github.com/floatchat/floatchat/internal/config"
	"github.com/floatchat/floatchat/internal/pprof"
	"github.com/floatchat/floatchat/internal/serve"
)

var (
	serveFlags backendFlags
	serveAddr  string
	serveToken string
	servePprof int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over WebSocket",
	Long: `Start a WebSocket server. Each connection to /sessions/new gets its own
agent; a client that drops can reconnect to /sessions/<id>?since=<seq> and
replay the events it missed. Sessions live in memory only.

Examples:
  floatchat serve
  floatchat serve --addr :9000 --token secret
  FLOATCHAT_SERVE_TOKEN=secret floatchat serve --backend qwen`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(&serveFlags)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Serve.Addr = serveAddr
		}
		if serveToken != "" {
			cfg.Serve.Token = serveToken
		}

		log, closeLog, err := setupLogger(cfg, false)
		if err != nil {
			return err
		}
		defer closeLog()

		// fail at startup rather than on the first connection
		if _, err := newProvider(cfg, log); err != nil {
			return err
		}

		token, err := config.ResolveValue(cfg.Serve.Token)
		if err != nil {
			return err
		}

		manager := serve.NewSessionManager(func(id string) (*agent.Agent, error) {
			return newAgent(cfg, log.With("session", id), id)
		}, serve.Options{Token: token, Logger: log})

		if servePprof >= 0 {
			prof := pprof.NewServer(log)
			port, err := prof.Start(servePprof)
			if err != nil {
				return err
			}
			defer prof.Stop(context.Background())
			pprof.PrintUsage(cmd.ErrOrStderr(), port)
		}

		ctx, stop := signalContext()
		defer stop()
		if token == "" {
			log.Warn("no token configured, any client can connect", "addr", cfg.Serve.Addr)
		}
		return manager.Serve(ctx, cfg.Serve.Addr)
	},
}

func init() {
	serveFlags.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8787)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Require this bearer token")
	serveCmd.Flags().IntVar(&servePprof, "pprof", -1, "Serve runtime profiles on this localhost port (0 picks one)")
	rootCmd.AddCommand(serveCmd)
}
