package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wethinkt/go-cdrintel/internal/analytics"
	"github.com/wethinkt/go-cdrintel/internal/applog"
	"github.com/wethinkt/go-cdrintel/internal/cdr"
	"github.com/wethinkt/go-cdrintel/internal/export"
	"github.com/wethinkt/go-cdrintel/internal/geofence"
	"github.com/wethinkt/go-cdrintel/internal/ingest"
	"github.com/wethinkt/go-cdrintel/internal/lookup"
	"github.com/wethinkt/go-cdrintel/internal/store"
	"github.com/wethinkt/go-cdrintel/internal/version"
)

// SessionsResponse is returned by GET /v1/sessions.
type SessionsResponse struct {
	Sessions []cdr.Session `json:"sessions"`
}

// GeofencesResponse is returned by GET /v1/geofences.
type GeofencesResponse struct {
	Geofences []geofence.Geofence `json:"geofences"`
}

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	Store         *store.Stats `json:"store,omitempty"`
}

// handleHealth reports liveness and store statistics.
// @Summary Health check
// @Description Returns server status, version, uptime and store totals. Open without a token.
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       version.Get(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
	if s.svc.Store != nil {
		stats, err := s.svc.Store.Stats(r.Context())
		if err != nil {
			applog.Log.Warn("Health stats failed", "error", err)
			resp.Status = "degraded"
		}
		resp.Store = stats
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleIngest accepts a multipart upload with a "file" part and optional
// "suspect_name" and "session_id" fields.
// @Summary Ingest a CDR file
// @Tags ingest
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV, Excel or JSON file"
// @Param suspect_name formData string false "Suspect the records belong to"
// @Param session_id formData string false "Session id to use"
// @Success 200 {object} ingest.Result
// @Failure 400 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /ingest [post]
// @Security BearerAuth
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { ingestDurationSeconds.Observe(time.Since(start).Seconds()) }()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		ingestRequestsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "invalid_upload", "Failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		ingestRequestsTotal.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "validation_error", "file is required")
		return
	}
	defer file.Close()

	opts := ingest.Options{
		SuspectName: strings.TrimSpace(r.FormValue("suspect_name")),
		SessionID:   strings.TrimSpace(r.FormValue("session_id")),
	}
	res, err := s.svc.Pipeline.Ingest(r.Context(), header.Filename, file, opts)
	if err != nil {
		status, code := ingestErrorStatus(err)
		ingestRequestsTotal.WithLabelValues(code).Inc()
		applog.Log.Warn("Ingest request failed", "file", header.Filename, "error", err)
		writeError(w, status, code, err.Error())
		return
	}

	ingestRequestsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, res)
}

func ingestErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, ingest.ErrInvalidJSONRoot), errors.Is(err, ingest.ErrNoHeader):
		return http.StatusUnprocessableEntity, "invalid_file"
	default:
		return http.StatusInternalServerError, "ingest_failed"
	}
}

// handleListSessions lists ingestion sessions, newest first.
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Param suspect_name query string false "Only sessions of this suspect"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} SessionsResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sessions [get]
// @Security BearerAuth
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SessionFilter{
		SuspectName: q.Get("suspect_name"),
		Limit:       queryInt(q.Get("limit"), 0),
		Offset:      queryInt(q.Get("offset"), 0),
	}
	sessions, err := s.svc.Store.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if sessions == nil {
		sessions = []cdr.Session{}
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: sessions})
}

// @Summary Get a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session id"
// @Success 200 {object} cdr.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
// @Security BearerAuth
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func scopeFromQuery(r *http.Request) cdr.Scope {
	q := r.URL.Query()
	return cdr.Scope{
		SessionID:   strings.TrimSpace(q.Get("session_id")),
		SuspectName: strings.TrimSpace(q.Get("suspect_name")),
	}
}

// handleAnalytics serves one analyzer view over the scope selected by the
// session_id and suspect_name query parameters. The cross-suspect views read
// the suspects parameter instead, repeated or comma separated.
// @Summary Run an analyzer
// @Tags analytics
// @Produce json
// @Param view path string true "network, heatmap, imei, movement, colocation, anomalies, summary, overview, report, international, sms-services, common-numbers, common-towers or common-imei"
// @Param session_id query string false "Session id"
// @Param suspect_name query string false "Suspect name"
// @Param suspects query []string false "Suspect names for the cross-suspect views" collectionFormat(multi)
// @Param call_type query string false "Heatmap filter"
// @Param layer query string false "Movement grouping"
// @Param window query int false "Co-location window in minutes"
// @Success 200 {object} object
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /analytics/{view} [get]
// @Security BearerAuth
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	scope := scopeFromQuery(r)
	q := r.URL.Query()
	ctx := r.Context()

	var (
		out any
		err error
	)
	switch view {
	case "network":
		out, err = s.svc.Engine.ContactNetwork(ctx, scope)
	case "heatmap":
		filter, perr := analytics.ParseHeatmapFilter(q.Get("call_type"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "validation_error", perr.Error())
			return
		}
		out, err = s.svc.Engine.Heatmap(ctx, scope, filter)
	case "imei":
		out, err = s.svc.Engine.IMEITimeline(ctx, scope)
	case "movement":
		layer, perr := analytics.ParseMovementLayer(q.Get("layer"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "validation_error", perr.Error())
			return
		}
		out, err = s.svc.Engine.Movement(ctx, scope, layer)
	case "colocation":
		minutes := queryInt(q.Get("window"), 0)
		if minutes < 0 {
			writeError(w, http.StatusBadRequest, "validation_error", "window must be a positive number of minutes")
			return
		}
		var events []analytics.Colocation
		events, err = s.svc.Engine.Colocation(ctx, scope, time.Duration(minutes)*time.Minute)
		if events == nil {
			events = []analytics.Colocation{}
		}
		out = events
	case "anomalies":
		var found []analytics.Anomaly
		found, err = s.svc.Engine.Anomalies(ctx, scope)
		if found == nil {
			found = []analytics.Anomaly{}
		}
		out = found
	case "summary":
		out, err = s.svc.Engine.Summary(ctx, scope)
	case "overview":
		out, err = s.svc.Engine.Overview(ctx, scope)
	case "report":
		out, err = s.svc.Engine.Report(ctx, scope)
	case "international":
		out, err = s.svc.Engine.International(ctx, scope)
	case "sms-services":
		out, err = s.svc.Engine.SMSServices(ctx, scope)
	case "common-numbers":
		out, err = s.svc.Engine.CommonNumbers(ctx, q["suspects"])
	case "common-towers":
		out, err = s.svc.Engine.CommonTowers(ctx, q["suspects"])
	case "common-imei":
		out, err = s.svc.Engine.CommonDevices(ctx, q["suspects"])
	default:
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("unknown analytics view %q", view))
		return
	}
	if errors.Is(err, analytics.ErrTooFewSuspects) {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err != nil {
		applog.Log.Error("Analytics request failed", "view", view, "error", err)
		writeError(w, http.StatusInternalServerError, "analytics_failed", err.Error())
		return
	}
	analyticsRequestsTotal.WithLabelValues(view).Inc()
	writeJSON(w, http.StatusOK, out)
}

// handleExport renders the scope in the requested format as an attachment.
// The body is buffered so that failures still produce a JSON error.
// @Summary Export records
// @Description Renders the scope as csv, json, xlsx or a gzip report bundle.
// @Tags export
// @Produce octet-stream
// @Param format query string true "csv, json, xlsx or bundle"
// @Param session_id query string false "Session id"
// @Param suspect_name query string false "Suspect name"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /export [get]
// @Security BearerAuth
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	scope := scopeFromQuery(r)

	var buf bytes.Buffer
	if _, err := s.svc.Exporter.Export(r.Context(), scope, format, &buf); err != nil {
		applog.Log.Error("Export failed", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", format.FileName(scope, time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// @Summary List geofences
// @Tags geofences
// @Produce json
// @Param suspect_name query string false "Only fences of this suspect"
// @Success 200 {object} GeofencesResponse
// @Router /geofences [get]
// @Security BearerAuth
func (s *Server) handleListGeofences(w http.ResponseWriter, r *http.Request) {
	fences, err := s.svc.Store.ListGeofences(r.Context(), r.URL.Query().Get("suspect_name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if fences == nil {
		fences = []geofence.Geofence{}
	}
	writeJSON(w, http.StatusOK, GeofencesResponse{Geofences: fences})
}

// @Summary Create a geofence
// @Tags geofences
// @Accept json
// @Produce json
// @Param fence body geofence.Geofence true "Polygon and owner"
// @Success 201 {object} geofence.Geofence
// @Failure 400 {object} ErrorResponse
// @Router /geofences [post]
// @Security BearerAuth
func (s *Server) handleCreateGeofence(w http.ResponseWriter, r *http.Request) {
	var g geofence.Geofence
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&g); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Failed to parse request body")
		return
	}
	if g.Name == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	created, err := s.svc.Store.CreateGeofence(r.Context(), g)
	if err != nil {
		if errors.Is(err, geofence.ErrInvalidPolygon) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	if s.svc.Evaluator != nil {
		s.svc.Evaluator.Invalidate(created.SuspectName)
	}
	applog.Log.Info("Created geofence", "id", created.ID, "name", created.Name, "suspect", created.SuspectName)
	writeJSON(w, http.StatusCreated, created)
}

// @Summary Delete a geofence
// @Tags geofences
// @Param id path string true "Geofence id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /geofences/{id} [delete]
// @Security BearerAuth
func (s *Server) handleDeleteGeofence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Store.DeleteGeofence(r.Context(), id); err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	if s.svc.Evaluator != nil {
		s.svc.Evaluator.Invalidate("")
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Decode an IMEI
// @Tags devices
// @Produce json
// @Param imei path string true "15 digit IMEI"
// @Success 200 {object} lookup.Device
// @Failure 400 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Router /devices/{imei} [get]
// @Security BearerAuth
func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if s.svc.Devices == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "device lookup is disabled")
		return
	}
	dev, err := s.svc.Devices.Decode(r.Context(), chi.URLParam(r, "imei"))
	if err != nil {
		if errors.Is(err, lookup.ErrInvalidIMEI) {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
