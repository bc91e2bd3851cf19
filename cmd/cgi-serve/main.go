// Copyright 2024 Juca Crispim <juca@poraodojuca.net>

// This file is part of cgi-echo.

// cgi-echo is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// cgi-echo is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.

// You should have received a copy of the GNU Affero General Public License
// along with cgi-echo. If not, see <http://www.gnu.org/licenses/>.

// cgi-serve serves a directory of CGI scripts over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jucacrispim/cgi-echo/gateway"
	"github.com/jucacrispim/cgi-echo/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOpts struct {
	addr     string
	cgiDir   string
	prefix   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := serveOpts{}
	cmd := &cobra.Command{
		Use:          "cgi-serve",
		Short:        "Serve a directory of CGI scripts",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", ":8080", "address to listen on")
	f.StringVar(&opts.cgiDir, "cgi-dir", "./cgi-bin", "directory holding the CGI scripts")
	f.StringVar(&opts.prefix, "prefix", "/cgi-bin/", "URL path prefix the scripts are served under")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level")
	return cmd
}

// newMux mounts the gateway under prefix.
func newMux(h http.Handler, prefix string) *http.ServeMux {
	prefix = "/" + strings.Trim(prefix, "/")
	mux := http.NewServeMux()
	if prefix == "/" {
		mux.Handle("/", h)
		return mux
	}
	mux.Handle(prefix+"/", http.StripPrefix(prefix, h))
	return mux
}

func serve(ctx context.Context, opts serveOpts) error {
	logger, err := logging.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	h, err := gateway.New(map[string]any{"CGI_DIR": opts.cgiDir})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newMux(h, opts.prefix),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", opts.addr),
			zap.String("cgi_dir", opts.cgiDir),
			zap.String("prefix", opts.prefix))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
