package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"consultas-gateway/internal/cache"
	"consultas-gateway/internal/upstream"
	"consultas-gateway/pkg/logging/logging"
)

// Source says where a response came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceError    Source = "error"
)

// Outcome is what the coordinator hands back for one request.
type Outcome struct {
	Source Source
	Status int

	// Body is the JSON value to send: the cached or upstream result verbatim,
	// or an ErrorBody.
	Body json.RawMessage

	// Entry is set for cache hits. Opaque entries carry raw bytes that the
	// caller must render itself.
	Entry *cache.Entry
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Detalle json.RawMessage `json:"detalle,omitempty"`
}

// Finder is the cache read side.
type Finder interface {
	Find(ctx context.Context, req cache.Request) (*cache.Entry, bool)
}

// Fetcher performs the upstream call.
type Fetcher interface {
	Get(ctx context.Context, path string, params url.Values) (*upstream.Result, error)
}

// Submitter queues a fetched result for persistence.
type Submitter interface {
	Submit(ctx context.Context, req cache.Request, body []byte) bool
}

// Coordinator serves a request from the cache, or fetches it upstream and
// queues the result for persistence after responding.
type Coordinator struct {
	finder    Finder
	fetcher   Fetcher
	submitter Submitter
}

// NewCoordinator wires the three stages. finder and submitter may be nil to
// run without a cache.
func NewCoordinator(finder Finder, fetcher Fetcher, submitter Submitter) *Coordinator {
	return &Coordinator{finder: finder, fetcher: fetcher, submitter: submitter}
}

// Handle resolves req and calls respond exactly once. On a miss the upstream
// result is persisted only after respond returns.
func (c *Coordinator) Handle(ctx context.Context, req cache.Request, upstreamPath string, respond func(Outcome)) {
	logger := logging.L(ctx).With(zap.String("route", req.Route), zap.String("param_name", req.ParamName))

	if c.finder != nil {
		if entry, ok := c.finder.Find(ctx, req); ok {
			logger.Debug("cache_hit", zap.String("key", entry.Key))
			respond(Outcome{Source: SourceCache, Status: http.StatusOK, Body: entry.Value(), Entry: entry})
			return
		}
	}

	res, err := c.fetcher.Get(ctx, upstreamPath, req.Params)
	if err != nil {
		respond(errorOutcome(err))
		return
	}

	body := res.Body
	if !json.Valid(body) {
		// plain text answers are sent as a JSON string
		body, _ = json.Marshal(string(res.Body))
	}
	respond(Outcome{Source: SourceUpstream, Status: http.StatusOK, Body: body})

	if c.submitter != nil {
		c.submitter.Submit(logging.Detach(ctx), req, res.Body)
	}
}

func errorOutcome(err error) Outcome {
	status := http.StatusInternalServerError
	eb := ErrorBody{Message: "Error interno del gateway"}

	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		status = uerr.HTTPStatus()
		eb.Message = uerr.Message
		eb.Detalle = uerr.Detail
		switch uerr.Kind {
		case upstream.KindTimeout:
			eb.Message = "El servicio de consultas no respondió a tiempo"
		case upstream.KindUnreachable:
			eb.Message = "El servicio de consultas no está disponible"
		}
	}
	if eb.Detalle == nil {
		eb.Detalle, _ = json.Marshal(err.Error())
	}

	return Outcome{Source: SourceError, Status: status, Body: MustJSON(eb)}
}

// MustJSON marshals values that cannot fail to encode.
func MustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
