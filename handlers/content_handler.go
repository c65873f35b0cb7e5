package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/ai-orchestrator/services"
	"github.com/upb/ai-orchestrator/services/content"
	"github.com/upb/ai-orchestrator/utils"
	"go.uber.org/zap"
)

// ContentRequest is the optional body of POST /api/v1/content/{type}
type ContentRequest struct {
	Variant  string `json:"variant,omitempty" validate:"max=32"`
	Language string `json:"language,omitempty" validate:"max=8"`
}

// ContentService defines the content operations exposed over HTTP
type ContentService interface {
	Generate(ctx context.Context, req content.Request) (content.Result, error)
	Invalidate(ctx context.Context, req content.Request) error
	Clear(ctx context.Context) error
}

// ContentHandler serves generated maintenance and notification copy
type ContentHandler struct {
	service ContentService
	logger  *zap.Logger
}

// NewContentHandler creates a new ContentHandler
func NewContentHandler(service ContentService, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerate handles POST /api/v1/content/{type}
func (h *ContentHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var body ContentRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeJSON(r, &body); err != nil {
			HandleValidationError(w, err, h.logger)
			return
		}
	}
	if err := utils.ValidateStruct(&body); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	req := content.Request{
		Type:     content.ContentType(chi.URLParam(r, "type")),
		Variant:  body.Variant,
		Language: body.Language,
	}

	result, err := h.service.Generate(r.Context(), req)
	if err != nil {
		HandleServiceError(w, contentError(err), h.logger)
		return
	}

	h.logger.Debug("content served",
		zap.String("type", string(result.Type)),
		zap.String("variant", result.Variant),
		zap.String("language", result.Language),
		zap.String("source", string(result.Source)))

	_ = utils.WriteOK(w, result)
}

// HandleTypes handles GET /api/v1/content/types
func (h *ContentHandler) HandleTypes(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, content.Types())
}

// HandleClearCache handles DELETE /api/v1/content/cache. With a type query
// parameter only that entry is dropped.
func (h *ContentHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var err error
	if contentType := q.Get("type"); contentType != "" {
		err = h.service.Invalidate(r.Context(), content.Request{
			Type:     content.ContentType(contentType),
			Variant:  q.Get("variant"),
			Language: q.Get("language"),
		})
	} else {
		err = h.service.Clear(r.Context())
	}

	if err != nil {
		HandleServiceError(w, contentError(err), h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func contentError(err error) error {
	switch {
	case errors.Is(err, content.ErrUnknownContentType):
		return services.ErrContentTypeNotFound.Because("", err)
	case errors.Is(err, content.ErrUnknownVariant):
		return services.ErrInvalidVariant.Because("", err)
	default:
		return services.WrapInternal("content cache operation failed", err)
	}
}
