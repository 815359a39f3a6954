package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/events"
)

// Publish implements events.Publisher by broadcasting the event to all
// clients. A snapshot follows every event that changes the collection.
func (s *Server) Publish(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Errorw("Failed to marshal event", "type", e.Type, "error", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeEvent, Timestamp: e.Timestamp, Data: data})

	if e.Type == events.FolderChanged {
		return
	}
	msg, err := s.snapshotMessage(s.ctx)
	if err != nil {
		s.logger.Warnw("Failed to build snapshot", "error", err)
		return
	}
	s.Broadcast(*msg)
}

// Snapshot computes the current collection statistics.
func (s *Server) Snapshot(ctx context.Context) (*SnapshotData, error) {
	if s.backups == nil {
		return &SnapshotData{}, nil
	}

	courses, err := s.backups.Courses().LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}
	list, err := s.backups.ListBackups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	snap := &SnapshotData{Courses: len(courses), Backups: len(list)}
	for i := range courses {
		snap.Students += len(courses[i].Students)
		snap.Tests += len(courses[i].Tests)
		snap.CompletedFeedback += courses[i].CompletedFeedbackCount()
	}
	if len(list) > 0 {
		ts := list[0].Timestamp
		snap.LastBackup = &ts
	}
	return snap, nil
}

func (s *Server) snapshotMessage(ctx context.Context) (*Message, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return &Message{Type: MessageTypeSnapshot, Timestamp: time.Now(), Data: data}, nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	summaries, err := s.backups.Courses().Summaries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		writeJSON(w, http.StatusOK, []backup.Entry{})
		return
	}
	list, err := s.backups.ListBackups(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotFound, backup.ErrBackupNotFound)
		return
	}
	entry, err := s.backups.Lookup(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, backup.ErrBackupNotFound):
		s.writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleRoot returns basic server information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Markbook Dashboard</title>
</head>
<body>
    <h1>Markbook Dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Courses: <a href="/api/courses">/api/courses</a>, backups: <a href="/api/backups">/api/backups</a></p>
</body>
</html>`, r.Host)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("Request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
