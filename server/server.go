// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/cmd/version"
	"github.com/gorse-io/suggest/common/parallel"
	"github.com/gorse-io/suggest/config"
	"github.com/gorse-io/suggest/engine"
	"github.com/gorse-io/suggest/storage/cache"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swgui "github.com/swaggest/swgui/v5emb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	apiDocsPath     = "/apidocs/"
	apiDocsJSONPath = "/apidocs.json"
)

// Server serves an engine context over HTTP.
type Server struct {
	RestServer
	host           string
	port           int
	tracerProvider trace.TracerProvider
	httpServer     *http.Server
}

// NewServer creates a server. The result cache is opened from the server
// configuration.
func NewServer(c *engine.Context, cfg *config.Config) (*Server, error) {
	resultCache, err := cache.Open(cfg.Server.CacheURI)
	if err != nil {
		return nil, errors.Trace(err)
	}
	tp, err := cfg.Tracing.NewTracerProvider(version.Version)
	if err != nil {
		return nil, errors.Trace(err)
	}
	otel.SetTracerProvider(tp)
	otel.SetErrorHandler(log.GetErrorHandler())
	return &Server{
		RestServer: RestServer{
			Context:    c,
			Cache:      resultCache,
			CacheTTL:   cfg.Server.CacheTTL,
			APIKey:     cfg.Server.APIKey,
			Limiter:    parallel.NewRateLimiter(cfg.Server.RequestsPerSecond),
			WebService: new(restful.WebService),
		},
		host:           cfg.Server.Host,
		port:           cfg.Server.Port,
		tracerProvider: tp,
	}, nil
}

// Handler builds the HTTP handler: the REST API, its OpenAPI document, the
// Swagger UI and Prometheus metrics.
func (s *Server) Handler() http.Handler {
	s.CreateWebService()
	container := restful.NewContainer()
	container.Filter(otelrestful.OTelFilter("suggest", otelrestful.WithTracerProvider(s.tracerProvider)))
	container.Add(s.WebService)
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     apiDocsJSONPath,
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle(apiDocsPath, swgui.New("suggest", apiDocsJSONPath, apiDocsPath))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// Serve blocks until the context is canceled or the listener fails.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	errChan := make(chan error, 1)
	go func() {
		log.Logger().Info("start http server", zap.String("url", "http://"+addr))
		errChan <- s.httpServer.ListenAndServe()
	}()
	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			return errors.Trace(err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Logger().Info("shutdown http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.Cache.Close())
}
