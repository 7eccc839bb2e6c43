package app

import (
	"context"
	"net/http"
	"time"

	"anonchat/pkg/api"
	"anonchat/pkg/banner"
	"anonchat/pkg/logger"
	"anonchat/pkg/security"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	banner.Print(a.cfg, a.addr, a.dbPath, a.source, a.version)
}

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel that will contain any server error.
func (a *App) startHTTP() <-chan error {
	handler := api.NewRouter(api.Deps{
		Auth:   a.authSvc,
		Broker: a.broker,
		Queue:  a.queue,
		Sec: security.SecConfig{
			AllowedOrigins: append([]string{}, a.cfg.Security.CORS.AllowedOrigins...),
			RPS:            a.cfg.Security.RateLimit.RPS,
			Burst:          a.cfg.Security.RateLimit.Burst,
			IPWhitelist:    append([]string{}, a.cfg.Security.IPWhitelist...),
		},
	})

	a.srv = &http.Server{Addr: a.addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		logger.Info("http_listening", "addr", a.addr, "tls", cert != "" && key != "")
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}

// stopHTTP drains in-flight requests with a short deadline.
func (a *App) stopHTTP() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown_forced", "error", err)
		_ = a.srv.Close()
	}
}
