package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/0xWizop/incubator-sub002"
	httpws "github.com/0xWizop/incubator-sub002/http"
	chiadapter "github.com/0xWizop/incubator-sub002/http/chi"
	ginadapter "github.com/0xWizop/incubator-sub002/http/gin"
	mcpws "github.com/0xWizop/incubator-sub002/mcp"
	"github.com/0xWizop/incubator-sub002/tui"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr   string
		router string
		useTUI bool
		mcp    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wallet session over HTTP",
		Long: "serve restores the wallet registry and exposes the session API. " +
			"Connect requests wait on a wallet prompt that a remote UI answers under /prompt, " +
			"or that is shown in this terminal with --tui.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}
			if cmd.Flags().Changed("router") {
				cfg.HTTP.Router = router
			}
			if cmd.Flags().Changed("mcp") {
				cfg.MCP.Enabled = mcp
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			prompts := httpws.NewPromptModal()
			var modal walletsession.Modal = prompts
			if useTUI {
				modal = tui.NewModal(tui.WithOutput(cmd.ErrOrStderr()))
			}

			a, err := wireApp(ctx, cfg, cmd.ErrOrStderr(), modal)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, err := newHandler(a, prompts)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			a.logger.Info("serving wallet session",
				"addr", cfg.HTTP.Addr,
				"router", cfg.HTTP.Router,
				"mcp", cfg.MCP.Enabled)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			// Closing the session releases requests blocked in connect.
			_ = a.session.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&router, "router", "", "router to serve with: chi or gin (overrides http.router)")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "show wallet prompts in this terminal")
	cmd.Flags().BoolVar(&mcp, "mcp", false, "also serve MCP tools under /mcp (overrides mcp.enabled)")
	return cmd
}

func newHandler(a *app, prompts *httpws.PromptModal) (http.Handler, error) {
	server, err := httpws.NewServer(a.session,
		httpws.WithPromptModal(prompts),
		httpws.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	var mcpHandler http.Handler
	if a.cfg.MCP.Enabled {
		mcpHandler = mcpws.NewServer(a.session, "walletsession", version, a.logger).Handler()
	}

	if a.cfg.HTTP.Router == "gin" {
		gin.SetMode(gin.ReleaseMode)
		engine := ginadapter.NewEngine(server)
		if mcpHandler != nil {
			engine.Any("/mcp", gin.WrapH(mcpHandler))
		}
		return engine, nil
	}

	r := chiadapter.NewRouter(server, httpws.NewRequestLogger(a.logger))
	if mcpHandler != nil {
		r.Handle("/mcp", mcpHandler)
	}
	return r, nil
}
