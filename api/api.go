// Package api is the local control surface: status, stats, settings,
// templates, the contact ledger and the start/stop commands, served over
// HTTP on the loopback interface. It steers the autopilot and reads the
// store; it never touches the browser itself.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/linkreach/autopilot"
	"github.com/hazyhaar/linkreach/dashsync"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
)

// Server bundles the collaborators the handlers need.
type Server struct {
	st   *store.Store
	eng  *quota.Engine
	rt   *autopilot.Runtime
	dash *dashsync.Client
	log  *slog.Logger
}

// NewServer creates the control API. dash may be nil when no dashboard is
// configured.
func NewServer(st *store.Store, eng *quota.Engine, rt *autopilot.Runtime, dash *dashsync.Client, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{st: st, eng: eng, rt: rt, dash: dash, log: log}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/stats", s.handleStats)

		r.Post("/automation/start", s.handleStart)
		r.Post("/automation/stop", s.handleStop)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)

		r.Get("/templates", s.handleListTemplates)
		r.Post("/templates", s.handleSaveTemplate)
		r.Delete("/templates/{id}", s.handleDeleteTemplate)

		r.Get("/contacts", s.handleContacts)

		r.Post("/dashboard/verify", s.handleDashboardVerify)
	})
	return r
}

// statusResponse mirrors what the old popup polled for: the run phase plus
// today's counters against the effective limit.
type statusResponse struct {
	Phase       autopilot.Phase `json:"phase"`
	CurrentPage int             `json:"currentPage"`
	DryRun      bool            `json:"dryRun"`
	StopReason  string          `json:"stopReason,omitempty"`
	LastWarning string          `json:"lastWarning,omitempty"`

	DailySent    int `json:"dailySent"`
	DailySkipped int `json:"dailySkipped"`
	DailyErrors  int `json:"dailyErrors"`
	DailyLimit   int `json:"dailyLimit"`
	WeeklySent   int `json:"weeklySent"`
	WeeklyLimit  int `json:"weeklyLimit"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	run := s.rt.Snapshot()

	settings, err := s.st.GetSettings(ctx)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	daily, err := s.st.GetDailyStats(ctx)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	weekly, err := s.st.GetWeeklyStats(ctx)
	if err != nil {
		writeError(w, 500, err)
		return
	}

	writeJSON(w, 200, statusResponse{
		Phase:        run.Phase,
		CurrentPage:  run.Page,
		DryRun:       run.DryRun,
		StopReason:   run.StopReason,
		LastWarning:  run.LastWarning,
		DailySent:    daily.Sent,
		DailySkipped: daily.Skipped,
		DailyErrors:  daily.Errors,
		DailyLimit:   quota.EffectiveDailyLimit(settings),
		WeeklySent:   weekly.Sent,
		WeeklyLimit:  settings.WeeklyLimit,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	daily, err := s.st.GetDailyStats(ctx)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	weekly, err := s.st.GetWeeklyStats(ctx)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	activity, err := s.st.RecentActivity(ctx, 50)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if activity == nil {
		activity = []store.ActivityEntry{}
	}
	writeJSON(w, 200, map[string]any{
		"daily":    daily,
		"weekly":   weekly,
		"activity": activity,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SearchURL  string `json:"searchUrl"`
		TemplateID string `json:"templateId"`
		CampaignID string `json:"campaignId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}

	err := s.rt.Start(r.Context(), autopilot.StartRequest{
		SearchURL:  req.SearchURL,
		TemplateID: req.TemplateID,
		CampaignID: req.CampaignID,
	})
	var denied *autopilot.DeniedError
	switch {
	case err == nil:
		writeJSON(w, 200, map[string]string{"status": "started"})
	case errors.Is(err, autopilot.ErrAlreadyRunning):
		writeJSON(w, 409, map[string]string{"error": "already_running"})
	case errors.As(err, &denied):
		writeJSON(w, 422, map[string]string{"error": denied.Reason})
	default:
		writeError(w, 500, err)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.Stop(r.Context()); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "stopped"})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.st.GetSettings(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.st.GetSettings(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	// Decode over the current values so partial updates keep the rest.
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, 400, err)
		return
	}
	if err := validateSettings(settings); err != nil {
		writeError(w, 422, err)
		return
	}
	if err := s.st.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, 500, err)
		return
	}
	saved, err := s.st.GetSettings(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, saved)
}

func validateSettings(s store.Settings) error {
	switch {
	case s.DailyLimit < 1:
		return errors.New("dailyLimit must be at least 1")
	case s.WeeklyLimit < 1:
		return errors.New("weeklyLimit must be at least 1")
	case s.CooldownMinMs < 0 || s.CooldownMaxMs < s.CooldownMinMs:
		return errors.New("cooldown range is invalid")
	case s.BusinessHoursStart < 0 || s.BusinessHoursStart > 23,
		s.BusinessHoursEnd < 1 || s.BusinessHoursEnd > 24,
		s.BusinessHoursEnd <= s.BusinessHoursStart:
		return errors.New("business hours window is invalid")
	case s.WarmupDay < 1:
		return errors.New("warmupDay must be at least 1")
	}
	return nil
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tpls, err := s.st.Templates(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, tpls)
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl store.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		writeError(w, 400, err)
		return
	}
	if tpl.Name == "" || tpl.Body == "" {
		writeJSON(w, 422, map[string]string{"error": "name and body are required"})
		return
	}
	saved, err := s.st.SaveTemplate(r.Context(), tpl)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 201, saved)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.st.DeleteTemplate(r.Context(), id); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.st.Contacts(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}
	writeJSON(w, 200, contacts)
}

func (s *Server) handleDashboardVerify(w http.ResponseWriter, r *http.Request) {
	if s.dash == nil || !s.dash.Enabled() {
		writeJSON(w, 422, map[string]string{"error": "dashboard_not_configured"})
		return
	}
	res, err := s.dash.VerifyAndSync(r.Context())
	if err != nil {
		s.log.Warn("api: dashboard verify failed", "error", err)
		writeJSON(w, 502, map[string]string{"error": "dashboard_unreachable"})
		return
	}
	writeJSON(w, 200, map[string]any{
		"status": s.dash.Status(r.Context()),
		"auth":   res,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
