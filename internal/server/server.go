// Package server exposes the score library over HTTP so scores can be
// uploaded and browsed from outside the desktop viewer.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/staveplay/staveplay/internal/library"
	gamelog "github.com/staveplay/staveplay/internal/log"
)

// Uploads beyond this are rejected before parsing.
const maxUploadBytes = 8 << 20

type Server struct {
	store   *library.Store
	logger  *gamelog.Logger
	handler http.Handler
}

func New(store *library.Store, logger *gamelog.Logger) *Server {
	if logger == nil {
		logger = gamelog.Discard()
	}
	s := &Server{store: store, logger: logger}

	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/scores", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/scores", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/scores/{id}", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/scores/{id}/document", s.handleDocument).Methods(http.MethodGet)
	r.HandleFunc("/scores/{id}", s.handleDelete).Methods(http.MethodDelete)
	s.handler = cors.Default().Handler(r)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe blocks serving the API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Infof("[SERVER] listening on %s", addr)
	return http.ListenAndServe(addr, s.handler)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = "upload.musicxml"
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	entry, err := s.store.Save(filename, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Infof("[SERVER] uploaded %q as %s", filename, entry.ID)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entry, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no such score")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleDocument serves the stored MusicXML verbatim.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := s.store.Raw(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "no such score")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.recordare.musicxml+xml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "no such score")
		return
	}
	s.logger.Infof("[SERVER] deleted %s", id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
