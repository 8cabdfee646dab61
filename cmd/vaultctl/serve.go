package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cerbyonvault/vaultclient/client"
	"github.com/cerbyonvault/vaultclient/console"
)

const shutdownTimeout = 10 * time.Second

func cmdServe(ctx context.Context, a *app, args []string) error {
	fs := a.flags("serve")
	addr := fs.String("addr", a.cfg.ConsoleAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv, err := console.NewServer(console.Config{
		APIURL:          a.cfg.APIURL,
		SessionLifetime: a.cfg.SessionLifetime,
		Logger:          a.logger,
	}, func(backend client.Backend) (*client.AuthClient, error) {
		opts := append(a.cfg.ClientOptions(), client.WithLogger(a.logger))
		return client.NewAuthClient(a.cfg.APIURL, backend, opts...)
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", *addr)
	if err != nil {
		return err
	}
	return serve(ctx, a, ln, srv.Handler())
}

// serve runs handler on ln until ctx is cancelled, then drains
func serve(ctx context.Context, a *app, ln net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("console listening", "addr", ln.Addr().String(), "api", a.cfg.APIURL)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down console")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
