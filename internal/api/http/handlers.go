package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/yehezkielgunawan/shortin-v3/internal/database"
	"github.com/yehezkielgunawan/shortin-v3/internal/models"
	resp "github.com/yehezkielgunawan/shortin-v3/pkg/response"
)

type urlRequest struct {
	URL        string `json:"url" validate:"required,url"`
	CustomCode string `json:"custom_code,omitempty" validate:"omitempty,min=3,max=30"`
}

type urlResponse struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type urlStatsResponse struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	AccessCount int64     `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toURLResponse(url *models.URL) urlResponse {
	return urlResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	}
}

func toURLStatsResponse(url *models.URL) urlStatsResponse {
	return urlStatsResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		AccessCount: url.AccessCount,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	}
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp.SuccessResponse("pong"))
}

func handleShortenURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req urlRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.ValidationErrorResponse(validationErrs))
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.BadRequestResponse)
			return
		}

		url, err := svc.ShortenURL(r.Context(), req.URL, req.CustomCode)
		if err != nil {
			if errors.Is(err, database.ErrShortCodeExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.ShortCodeExistsResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"error": err.Error()})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.SuccessResponse("URL shortened successfully.", toURLResponse(url)))
	}
}

func handleResolveShortCode(svc URLService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.ResolveShortCode(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"error": err.Error()})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp.SuccessResponse("URL retrieved successfully.", toURLResponse(url)))
	}
}

func handleModifyURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		var req urlRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.ValidationErrorResponse(validationErrs))
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.BadRequestResponse)
			return
		}

		url, err := svc.ModifyURL(r.Context(), shortCode, req.URL)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"error": err.Error()})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp.SuccessResponse("URL updated successfully.", toURLResponse(url)))
	}
}

func handleDeactivateURL(svc URLService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		if err := svc.DeactivateURL(r.Context(), shortCode); err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"error": err.Error()})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp.SuccessResponse("URL deleted successfully."))
	}
}

func handleGetURLStats(svc URLService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURLStats(r.Context(), shortCode)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"error": err.Error()})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp.SuccessResponse("URL stats retrieved successfully.", toURLStatsResponse(url)))
	}
}

func handleListURLs(svc URLService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		urls, err := svc.ListURLs(r.Context())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"error": err.Error()})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.ServerErrorResponse)
			return
		}

		items := make([]urlResponse, 0, len(urls))
		for _, url := range urls {
			items = append(items, toURLResponse(url))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, resp.SuccessResponse("URLs retrieved successfully.", items))
	}
}
