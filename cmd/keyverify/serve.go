package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/server"
	"winsbygroup.com/keyverify/internal/version"
)

type ServeCommand struct {
	app *app

	routes bool
}

func NewServeCommand(a *app) *ServeCommand {
	return &ServeCommand{app: a}
}

func (c *ServeCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local verification API",
		Args:  cobra.NoArgs,
		RunE:  c.Run,
	}
	cmd.Flags().BoolVar(&c.routes, "routes", false, "print routes and exit")
	return cmd
}

func (c *ServeCommand) Run(cmd *cobra.Command, args []string) error {
	srv, err := server.Build(c.app.cfg, c.app.log)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.Services.Close()

	//
	// Routes inspection mode
	//
	if c.routes {
		routes := srv.Echo.Routes()
		sort.Slice(routes, func(i, j int) bool {
			return routes[i].Path < routes[j].Path
		})
		for _, r := range routes {
			fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", r.Method, r.Path)
		}
		return nil
	}

	fmt.Fprintln(cmd.ErrOrStderr(), version.Banner())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		c.app.log.Info("listening", zap.String("addr", srv.HTTP.Addr))
		if err := srv.Echo.StartServer(srv.HTTP); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.app.log.Info("shutting down")
	return srv.Echo.Shutdown(shutdownCtx)
}
