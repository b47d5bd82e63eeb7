// Package httpserver runs an http.Handler until a context is cancelled and
// then drains in-flight requests within a shutdown timeout.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(srv.RunFunc(ctx, router))
package httpserver
