package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flemzord/hlbroker/internal/approval"
	"github.com/flemzord/hlbroker/internal/events"
	"github.com/flemzord/hlbroker/internal/security"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Deps are the collaborators the API serves.
type Deps struct {
	FunctionCalls *approval.FunctionCallService // required
	HumanContacts *approval.HumanContactService // required
	Auth          *security.Authenticator       // required

	Webhooks *WebhookDispatcher
	Metrics  *Metrics
	Events   *events.Bus
	Audit    *security.AuditLogger
	Limiter  *security.RateLimiter
	Logger   *slog.Logger
	Version  string

	// Channels lists the delivery channels with a real sender, for /status.
	Channels func() []approval.ChannelKind
}

// API holds the HTTP handlers.
type API struct {
	Deps
	config    Config
	startedAt time.Time
	now       func() time.Time
}

// NewAPI builds the handler set. cfg defaults are applied to a copy.
func NewAPI(cfg Config, deps Deps) *API {
	cfg.defaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Webhooks == nil {
		deps.Webhooks = NewWebhookDispatcher(deps.Logger)
	}
	a := &API{Deps: deps, config: cfg, startedAt: time.Now(), now: time.Now}
	if deps.Limiter != nil && deps.Webhooks.Admit == nil {
		deps.Webhooks.Admit = a.admitWebhook
	}
	return a
}

// admitWebhook charges a verified delivery to its source's bucket.
func (a *API) admitWebhook(r *http.Request, source string) error {
	if err := a.Limiter.AllowKey(security.BucketWebhook, source); err != nil {
		a.Audit.Log(security.AuditEvent{
			Type:     security.EventRateLimit,
			Detail:   security.BucketWebhook,
			Metadata: map[string]string{"source": source, "remote_addr": r.RemoteAddr},
		})
		return err
	}
	return nil
}

// Handler returns the routed HTTP handler.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observe(a.Logger, a.Metrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed", nil)
	})

	// Public.
	r.Get("/health", a.handleHealth)
	if a.Metrics != nil && a.config.metricsEnabled() {
		r.Handle(a.config.Metrics.Path, a.Metrics.Handler())
	}

	// Webhooks authenticate themselves and are rate limited once verified.
	r.With(limitBody(a.config.MaxBodyBytes)).
		Post("/{source}/interactions", a.Webhooks.ServeHTTP)

	r.Route("/humanlayer/v1", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Use(limitBody(a.config.MaxBodyBytes))

		calls := a.functionCallRoutes()
		r.Mount("/function_calls", calls)
		r.Mount("/agent/function_calls", calls)

		contacts := a.humanContactRoutes()
		r.Mount("/contact_requests", contacts)
		r.Mount("/agent/human_contacts", contacts)

		r.Get("/status", a.handleStatus)
		if a.Events != nil && a.config.eventsEnabled() {
			r.Get("/events", a.handleEvents)
		}
	})

	return a.corsHandler().Handler(r)
}

func (a *API) functionCallRoutes() chi.Router {
	r := chi.NewRouter()
	r.With(a.rateLimit(security.BucketCreate)).Post("/", a.createFunctionCall)
	r.Get("/{call_id}", a.getFunctionCall)
	r.Post("/{call_id}/respond", a.respondFunctionCall)
	r.Post("/{call_id}/escalate_email", a.escalateFunctionCall)
	r.Get("/{call_id}/escalations", a.functionCallEscalations)
	return r
}

func (a *API) humanContactRoutes() chi.Router {
	r := chi.NewRouter()
	r.With(a.rateLimit(security.BucketCreate)).Post("/", a.createHumanContact)
	r.Get("/{call_id}", a.getHumanContact)
	r.Post("/{call_id}/respond", a.respondHumanContact)
	r.Post("/{call_id}/escalate_email", a.escalateHumanContact)
	r.Get("/{call_id}/escalations", a.humanContactEscalations)
	return r
}

func (a *API) corsHandler() *cors.Cors {
	c := a.config.CORS
	headers := c.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Authorization", "Content-Type"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: c.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: headers,
		MaxAge:         c.MaxAge,
	})
}

// rateLimit rejects requests once bucket is full.
func (a *API) rateLimit(bucket string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Limiter.Allow(bucket); err != nil {
				a.Audit.Log(security.AuditEvent{
					Type:     security.EventRateLimit,
					Detail:   bucket,
					Metadata: map[string]string{"path": r.URL.Path, "remote_addr": r.RemoteAddr},
				})
				writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
