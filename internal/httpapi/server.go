package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"minivault/internal/llm"
	"minivault/internal/stream"
	"minivault/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Run(ctx context.Context, prompt string, sink stream.Sink) (stream.Result, error)
	Ready(ctx context.Context) bool
	Models(ctx context.Context) ([]string, error)
}

// NewService combines the accumulator with the backend it generates from.
func NewService(acc *stream.Accumulator, backend llm.Backend) Service {
	return &service{Accumulator: acc, backend: backend}
}

type service struct {
	*stream.Accumulator
	backend llm.Backend
}

func (s *service) Ready(ctx context.Context) bool { return s.backend.Ready(ctx) }

func (s *service) Models(ctx context.Context) ([]string, error) { return s.backend.Models(ctx) }

// readyTimeout bounds the model endpoint probe behind /readyz and /models.
const readyTimeout = 3 * time.Second

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer, metrics
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/ws/generate", handleSocket(svc))

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))
		r.Post("/generate", handleGenerate(svc))
		r.Get("/models", handleModels(svc))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if svc.Ready(ctx) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("model endpoint unavailable"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodePrompt reads a {"prompt": string} object. Only presence and type of
// the field are checked; an empty prompt is passed on to the model.
func decodePrompt(r io.Reader) (string, error) {
	var body struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return "", malformedRequestError{msg: "invalid JSON body"}
	}
	if body.Prompt == nil {
		return "", malformedRequestError{msg: "prompt is required"}
	}
	return *body.Prompt, nil
}

// handleGenerate godoc
//
//	@Summary		Generate a completion
//	@Description	Runs the prompt to completion and returns the full text in one JSON object.
//	@Tags			generate
//	@Accept			json
//	@Produce		json
//	@Param			body	body		types.GenerateRequest	true	"Prompt"
//	@Success		200		{object}	types.GenerateResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		415		{object}	types.ErrorResponse
//	@Failure		502		{object}	types.ErrorResponse
//	@Router			/generate [post]
func handleGenerate(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			observeGeneration(transportREST, outcomeMalformed, 0)
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		prompt, err := decodePrompt(r.Body)
		if err != nil {
			observeGeneration(transportREST, outcomeMalformed, 0)
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := generationContext(r, r.Context(), transportREST)
		defer cancel()
		log := zerolog.Ctx(ctx)
		start := time.Now()
		log.Info().Int("prompt_len", len(prompt)).Msg("generate start")

		res, err := svc.Run(ctx, prompt, stream.Discard)
		if err != nil {
			observeGeneration(transportREST, outcomeFailed, 0)
			// If the client went away or the server is stopping, nobody reads the answer.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusFor(err)
			log.Error().Err(err).Int("status", status).Dur("dur", time.Since(start)).Msg("generate end")
			writeJSONError(w, status, err.Error())
			return
		}
		if res.Disconnected {
			observeGeneration(transportREST, outcomeDisconnected, res.Fragments)
			log.Info().Int("fragments", res.Fragments).Dur("dur", time.Since(start)).Msg("generate interrupted")
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeJSONError(w, http.StatusGatewayTimeout, "generation timed out")
			return
		}
		observeGeneration(transportREST, outcomeOK, res.Fragments)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.GenerateResponse{Response: res.Text}); err != nil {
			log.Error().Err(err).Msg("encode response")
			return
		}
		log.Info().Int("status", http.StatusOK).Int("fragments", res.Fragments).Dur("dur", time.Since(start)).Msg("generate end")
	}
}

// handleModels godoc
//
//	@Summary	List installed models
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Failure	502	{object}	types.ErrorResponse
//	@Router		/models [get]
func handleModels(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		models, err := svc.Models(ctx)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		if models == nil {
			models = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(types.ModelsResponse{Models: models}); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	}
}
