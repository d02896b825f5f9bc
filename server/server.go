package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docmill/internal/types"
	"docmill/pkg/processor"
	log "github.com/sirupsen/logrus"
)

// IngestResponse reports what one uploaded document produced.
type IngestResponse struct {
	Source  string `json:"source"`
	Records int    `json:"records"`
	Chunks  int    `json:"chunks"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Config struct {
	Addr           string
	UploadDir      string
	MaxUploadBytes int64
	Processor      types.DocumentProcessor
}

// IntakeServer accepts document uploads over HTTP, stores them in the upload
// directory and runs them through the processor.
type IntakeServer struct {
	config Config
	server *http.Server
}

func New(config Config) (*IntakeServer, error) {
	if config.Processor == nil {
		return nil, errors.New("a document processor is required")
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.UploadDir == "" {
		config.UploadDir = "."
	}
	if config.MaxUploadBytes == 0 {
		config.MaxUploadBytes = 50 << 20
	}

	if err := os.MkdirAll(config.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory %s: %v", config.UploadDir, err)
	}

	s := &IntakeServer{config: config}

	mux := http.NewServeMux()
	mux.HandleFunc("/documents", s.handleUpload)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    config.Addr,
		Handler: mux,
	}
	return s, nil
}

func (s *IntakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Allow some slack over the document limit for multipart framing; the
	// per-file size check below enforces the real limit.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body is over the %d byte limit", s.config.MaxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if header.Size > s.config.MaxUploadBytes {
		log.WithFields(log.Fields{"file": header.Filename, "bytes": header.Size}).Warn("rejecting oversized upload")
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%s is %d bytes, over the %d byte limit", header.Filename, header.Size, s.config.MaxUploadBytes))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	supported := s.config.Processor.SupportedExtensions()
	ok := false
	for _, allowed := range supported {
		if ext == allowed {
			ok = true
			break
		}
	}
	if !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("unsupported file type %q, supported types: %s", ext, strings.Join(supported, ", ")))
		return
	}

	dest := filepath.Join(s.config.UploadDir, filepath.Base(header.Filename))
	out, err := os.Create(dest)
	if err != nil {
		log.WithError(err).WithField("file", dest).Error("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(dest)
		log.WithError(err).WithField("file", dest).Error("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := out.Close(); err != nil {
		log.WithError(err).WithField("file", dest).Error("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	records, err := s.config.Processor.LoadDocument(r.Context(), dest)
	if err != nil {
		if errors.Is(err, processor.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.WithError(err).WithField("file", dest).Error("failed to load document")
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	chunks, err := s.config.Processor.SplitDocuments(records)
	if err != nil {
		log.WithError(err).WithField("file", dest).Error("failed to split document")
		writeError(w, http.StatusInternalServerError, "failed to split document")
		return
	}

	log.WithFields(log.Fields{
		"file":    header.Filename,
		"records": len(records),
		"chunks":  len(chunks),
	}).Info("ingested document")

	writeJSON(w, http.StatusOK, IngestResponse{
		Source:  filepath.Base(header.Filename),
		Records: len(records),
		Chunks:  len(chunks),
	})
}

func (s *IntakeServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler exposes the route table for tests.
func (s *IntakeServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *IntakeServer) ListenAndServe() error {
	log.WithField("addr", s.server.Addr).Info("starting document intake server")
	return s.server.ListenAndServe()
}

func (s *IntakeServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
