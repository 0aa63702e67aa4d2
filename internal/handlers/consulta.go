package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"consultas-gateway/internal/cache"
	"consultas-gateway/internal/gateway"
	"consultas-gateway/internal/routes"
	"consultas-gateway/pkg/logging/logging"
)

// ConsultaHandler serves every route of the table through one coordinator.
type ConsultaHandler struct {
	Coordinator *gateway.Coordinator
}

// NewConsultaHandler returns a handler backed by c.
func NewConsultaHandler(c *gateway.Coordinator) *ConsultaHandler {
	return &ConsultaHandler{Coordinator: c}
}

// opaqueBody wraps a cached payload that is not JSON (media files).
type opaqueBody struct {
	Opaque      bool   `json:"opaque"`
	ContentType string `json:"content_type"`
	Encoding    string `json:"encoding"`
	Data        string `json:"data"`
}

// Route returns the GET handler for one table entry. Invalid parameters are
// rejected before the cache or the upstream is touched.
func (h *ConsultaHandler) Route(route routes.Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		req, err := route.Bind(r.URL.Query())
		if err != nil {
			var verr *routes.ValidationError
			if errors.As(err, &verr) {
				logging.L(ctx).Info("consulta_invalid", zap.Strings("params", verr.Params))
				writeError(w, http.StatusBadRequest, verr.Message, map[string][]string{"parametros": verr.Params})
				return
			}
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		h.Coordinator.Handle(ctx, req, route.Upstream, func(out gateway.Outcome) {
			logging.L(ctx).Info("consulta_served",
				zap.String("route", route.Path),
				zap.String("source", string(out.Source)),
				zap.Int("status", out.Status),
				zap.Duration("total_latency", time.Since(start)),
			)

			if out.Entry != nil && out.Entry.Opaque {
				writeJSON(w, out.Status, renderOpaque(out.Entry))
				return
			}
			writeRaw(w, out.Status, out.Body)
		})
	}
}

func renderOpaque(e *cache.Entry) opaqueBody {
	if utf8.Valid(e.Payload) && !isBinaryType(e.ContentType) {
		return opaqueBody{Opaque: true, ContentType: e.ContentType, Encoding: "utf-8", Data: string(e.Payload)}
	}
	return opaqueBody{
		Opaque:      true,
		ContentType: e.ContentType,
		Encoding:    "base64",
		Data:        base64.StdEncoding.EncodeToString(e.Payload),
	}
}

func isBinaryType(ct string) bool {
	switch ct {
	case "", "application/json", "text/plain":
		return false
	}
	return true
}
