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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/common/parallel"
	"github.com/gorse-io/suggest/dataset"
	"github.com/gorse-io/suggest/engine"
	"github.com/gorse-io/suggest/logics"
	"github.com/gorse-io/suggest/model/knn"
	"github.com/gorse-io/suggest/storage/cache"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	*engine.Context
	Cache      cache.Cache
	CacheTTL   time.Duration
	APIKey     string
	Limiter    parallel.RateLimiter
	WebService *restful.WebService
}

// Similarity between two users.
type Similarity struct {
	UserA      string  `json:"user_a"`
	UserB      string  `json:"user_b"`
	Similarity float64 `json:"similarity"`
	Defined    bool    `json:"defined"`
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	// generate request id
	requestId := req.HeaderParameter("X-Request-ID")
	if requestId == "" {
		requestId = uuid.NewString()
	}
	resp.AddHeader("X-Request-ID", requestId)

	start := time.Now()
	chain.ProcessFilter(req, resp)
	responseTime := time.Since(start)
	log.ResponseLogger(resp).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("response_time", responseTime))
	RequestSeconds.WithLabelValues(req.SelectedRoutePath(), strconv.Itoa(resp.StatusCode())).
		Observe(responseTime.Seconds())
}

func (s *RestServer) AuthFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.APIKey == "" || req.HeaderParameter("X-API-Key") == s.APIKey {
		chain.ProcessFilter(req, resp)
		return
	}
	log.ResponseLogger(resp).Error("unauthorized",
		zap.String("X-API-Key", req.HeaderParameter("X-API-Key")))
	if err := resp.WriteError(http.StatusUnauthorized, fmt.Errorf("unauthorized")); err != nil {
		log.ResponseLogger(resp).Error("failed to write error", zap.Error(err))
	}
}

func (s *RestServer) RateLimitFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.Limiter == nil || s.Limiter.TakeAvailable(1) > 0 {
		chain.ProcessFilter(req, resp)
		return
	}
	RateLimitedRequests.Inc()
	if err := resp.WriteError(http.StatusTooManyRequests, fmt.Errorf("too many requests")); err != nil {
		log.ResponseLogger(resp).Error("failed to write error", zap.Error(err))
	}
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	// Create a server
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(LogFilter)
	ws.Filter(s.AuthFilter)
	ws.Filter(s.RateLimitFilter)

	ws.Route(ws.GET("/recommend/{user-id}").To(s.getRecommend).
		Doc("Get recommended items for a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.QueryParameter("strategy", "neighborhood or model").DataType("string")).
		Param(ws.QueryParameter("k", "number of neighbors").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned items").DataType("integer")).
		Returns(http.StatusOK, "OK", []logics.Recommendation{}).
		Writes([]logics.Recommendation{}))
	ws.Route(ws.GET("/predict/{user-id}/{item-id}").To(s.getPredict).
		Doc("Predict the rating of a user for an item.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.PathParameter("item-id", "identifier of the item").DataType("string")).
		Param(ws.QueryParameter("strategy", "neighborhood or model").DataType("string")).
		Param(ws.QueryParameter("k", "number of neighbors").DataType("integer")).
		Returns(http.StatusOK, "OK", engine.Prediction{}).
		Writes(engine.Prediction{}))
	ws.Route(ws.GET("/similarity/{user-a}/{user-b}").To(s.getSimilarity).
		Doc("Get the similarity between two users.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-a", "identifier of a user").DataType("string")).
		Param(ws.PathParameter("user-b", "identifier of another user").DataType("string")).
		Returns(http.StatusOK, "OK", Similarity{}).
		Writes(Similarity{}))
	ws.Route(ws.GET("/neighbors/{user-id}/{item-id}").To(s.getNeighbors).
		Doc("Get the raters of an item that are most similar to a user.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"user"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Param(ws.PathParameter("user-id", "identifier of the user").DataType("string")).
		Param(ws.PathParameter("item-id", "identifier of the item").DataType("string")).
		Param(ws.QueryParameter("k", "number of neighbors").DataType("integer")).
		Returns(http.StatusOK, "OK", []knn.Neighbor{}).
		Writes([]knn.Neighbor{}))
	ws.Route(ws.GET("/model").To(s.getModel).
		Doc("Get the trained feature model.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"model"}).
		Param(ws.HeaderParameter("X-API-Key", "secret key for RESTful API")).
		Returns(http.StatusOK, "OK", engine.ModelInfo{}).
		Writes(engine.ModelInfo{}))
}

// ParseInt parses an integer query parameter. An absent parameter yields the
// fallback.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	value, err = strconv.Atoi(valueString)
	if err != nil && valueString == "" {
		value = fallback
		err = nil
	}
	return
}

func (s *RestServer) getRecommend(request *restful.Request, response *restful.Response) {
	ctx := request.Request.Context()
	userId := request.PathParameter("user-id")
	strategy := request.QueryParameter("strategy")
	k, err := ParseInt(request, "k", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	strategy, k, n, err = s.Resolve(strategy, k, n)
	if err != nil {
		Error(response, err)
		return
	}
	key := fmt.Sprintf("recommend/%s/%s/%s/%d/%d", s.Snapshot, userId, strategy, k, n)
	if cached, ok := s.loadCache(ctx, response, key); ok {
		Ok(response, cached)
		return
	}
	start := time.Now()
	results, err := s.Recommend(ctx, userId, strategy, k, n)
	if err != nil {
		Error(response, err)
		return
	}
	GetRecommendSeconds.Observe(time.Since(start).Seconds())
	s.storeCache(ctx, response, key, results)
	Ok(response, results)
}

func (s *RestServer) getPredict(request *restful.Request, response *restful.Response) {
	k, err := ParseInt(request, "k", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	prediction, err := s.Predict(request.Request.Context(),
		request.PathParameter("user-id"),
		request.PathParameter("item-id"),
		request.QueryParameter("strategy"), k)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, prediction)
}

func (s *RestServer) getSimilarity(request *restful.Request, response *restful.Response) {
	userA, userB := request.PathParameter("user-a"), request.PathParameter("user-b")
	score, ok, err := s.Similarity(userA, userB)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, Similarity{UserA: userA, UserB: userB, Similarity: score, Defined: ok})
}

func (s *RestServer) getNeighbors(request *restful.Request, response *restful.Response) {
	k, err := ParseInt(request, "k", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	neighbors, err := s.Neighbors(request.PathParameter("user-id"), request.PathParameter("item-id"), k)
	if err != nil {
		Error(response, err)
		return
	}
	Ok(response, neighbors)
}

func (s *RestServer) getModel(_ *restful.Request, response *restful.Response) {
	Ok(response, s.ModelInfo())
}

// loadCache returns a cached response body. Cache failures are logged and
// treated as misses.
func (s *RestServer) loadCache(ctx context.Context, response *restful.Response, key string) (json.RawMessage, bool) {
	if s.Cache == nil || s.CacheTTL <= 0 {
		return nil, false
	}
	value, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		log.ResponseLogger(response).Warn("failed to read cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return value, ok
}

func (s *RestServer) storeCache(ctx context.Context, response *restful.Response, key string, content any) {
	if s.Cache == nil || s.CacheTTL <= 0 {
		return
	}
	value, err := json.Marshal(content)
	if err != nil {
		log.ResponseLogger(response).Warn("failed to marshal cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err = s.Cache.Set(ctx, key, value, s.CacheTTL); err != nil {
		log.ResponseLogger(response).Warn("failed to write cache", zap.String("key", key), zap.Error(err))
	}
}

// Error maps an error to a status code.
func Error(response *restful.Response, err error) {
	var missing *dataset.MissingDataError
	switch {
	case errors.Is(err, errors.NotFound), errors.As(err, &missing):
		PageNotFound(response, err)
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.NotSupported):
		BadRequest(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns a internal server error.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.ResponseLogger(response).Error("internal server error", zap.Error(err))
	if err = response.WriteError(http.StatusInternalServerError, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.ResponseLogger(response).Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content any) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.ResponseLogger(response).Error("failed to write json", zap.Error(err))
	}
}
