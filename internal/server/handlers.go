package server

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"clipshelf/internal/api"
	"clipshelf/internal/auth"
	"clipshelf/internal/logging"
	"clipshelf/internal/services"
)

const healthProbeKey = "clipshelf-health-probe"

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	decision, _ := s.decision(r)
	status := api.ServerStatus{
		Running:         s.Running(),
		PID:             os.Getpid(),
		Bind:            s.Addr(),
		LockFilePath:    s.lockPath,
		ActiveSessions:  s.guard.Active(),
		Authenticated:   decision == auth.Authenticated,
		Stores:          s.storeHealth(r),
		Inconsistencies: []api.Inconsistency{},
	}
	if clips, err := s.clips.List(ctx); err == nil {
		status.ClipCount = len(clips)
	}
	if entries, err := s.meta.ListInconsistencies(ctx, true); err == nil {
		status.Inconsistencies = api.FromInconsistencies(entries)
	}
	if report, completed, ok := s.sweeper.Last(); ok {
		converted := api.FromReconcileReport(report, completed)
		status.LastReconcile = &converted
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) storeHealth(r *http.Request) []api.StoreHealth {
	ctx := r.Context()
	metaHealth := api.StoreHealth{Name: "metadata", Target: s.meta.Target(), Healthy: true}
	if err := s.meta.Ping(ctx); err != nil {
		metaHealth.Healthy = false
		metaHealth.Detail = err.Error()
	}
	objectHealth := api.StoreHealth{Name: "storage", Target: s.objects.Describe(), Healthy: true}
	if _, err := s.objects.Stat(ctx, healthProbeKey); err != nil && !errors.Is(err, services.ErrNotFound) {
		objectHealth.Healthy = false
		objectHealth.Detail = err.Error()
	}
	return []api.StoreHealth{metaHealth, objectHealth}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.guard.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, session)
	s.writeJSON(w, http.StatusOK, api.FromSession(session))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	decision, token := s.decision(r)
	if err := decision.Require("logout"); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.guard.Invalidate(token)
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	clips, err := s.clips.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClipListResponse{Clips: api.FromClips(clips)})
}

func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	id, err := clipIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	clip, err := s.clips.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClipResponse{Clip: api.FromClip(clip)})
}

func (s *Server) handleEditClip(w http.ResponseWriter, r *http.Request) {
	id, err := clipIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	decision, _ := s.decision(r)
	if err := decision.Require("edit"); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req api.EditRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := services.WithClipID(r.Context(), id)
	clip, err := s.clips.Edit(ctx, decision, id, req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClipResponse{Clip: api.FromClip(clip)})
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	id, err := clipIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	decision, _ := s.decision(r)
	ctx := services.WithClipID(r.Context(), id)
	clip, err := s.clips.Delete(ctx, decision, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: api.FromClip(clip)})
}

// handleClipContent streams a clip's payload. The content type is sniffed
// from the leading bytes since only the storage key is retained.
func (s *Server) handleClipContent(w http.ResponseWriter, r *http.Request) {
	id, err := clipIDParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := services.WithClipID(r.Context(), id)
	clip, obj, err := s.clips.Open(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer obj.Body.Close()

	body := bufio.NewReaderSize(obj.Body, 512)
	head, err := body.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		s.writeError(w, r, services.Wrap(services.ErrStorageUnavailable, "api", "content", "read clip payload", err))
		return
	}

	header := w.Header()
	header.Set("Content-Type", http.DetectContentType(head))
	header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	header.Set("Content-Disposition", `inline; filename="`+clip.UUID+`"`)
	header.Set("X-Clip-UUID", clip.UUID)
	if !obj.ModTime.IsZero() {
		header.Set("Last-Modified", obj.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil && r.Context().Err() == nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "clip stream interrupted", "content_stream_failed",
			logging.String(logging.FieldClipUUID, clip.UUID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "client received a truncated payload"),
		)
	}
}
