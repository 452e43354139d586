package main

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/litterly/waste-classification-service/lexicon"
	"github.com/litterly/waste-classification-service/orchestrator"
	"github.com/litterly/waste-classification-service/vision"
)

const defaultMaxUploadBytes = 10 << 20

var publicEndpoints = []string{"/", "/health", "/predict", "/predict/image", "/predict/text"}

type AppState struct {
	Model          *vision.Manager
	Orchestrator   *orchestrator.Orchestrator
	Metrics        *Metrics
	Log            *zap.Logger
	MaxUploadBytes int64
	AllowedOrigins []string
}

type StatusResponse struct {
	Message     string `json:"message"`
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type HealthResponse struct {
	Status      string   `json:"status"`
	ModelLoaded bool     `json:"model_loaded"`
	Endpoints   []string `json:"endpoints"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type CategoriesResponse struct {
	Categories []lexicon.Entry `json:"categories"`
}

// Handler builds the router with its middleware chain, wrapped in CORS.
func (s *AppState) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, s.loggingMiddleware, s.recoveryMiddleware)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/predict/text", s.handlePredictText).Methods(http.MethodPost)
	r.HandleFunc("/predict/image", s.handlePredictImage).Methods(http.MethodPost)
	r.HandleFunc("/categories", s.handleCategories).Methods(http.MethodGet)
	r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet)

	return corsMiddleware(s.AllowedOrigins, r)
}

func (s *AppState) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Message:     MsgRunning,
		Status:      "running",
		ModelLoaded: s.Model.IsReady(),
	})
}

func (s *AppState) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		ModelLoaded: s.Model.IsReady(),
		Endpoints:   publicEndpoints,
	})
}

func (s *AppState) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: lexicon.Entries()})
}

func (s *AppState) handlePredict(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeFormError(w, err)
		return
	}
	defer s.removeMultipart(r)

	up, closeFile, err := imageFromForm(r)
	if err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	defer closeFile()

	res, err := s.Orchestrator.Classify(r.Context(), orchestrator.Input{
		Image: up,
		Text:  r.PostFormValue("text"),
	})
	if err != nil {
		writeClassifyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *AppState) handlePredictText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUploadBytes())).Decode(&req); err != nil {
		sendErrorResponse(w, "invalid_request", MsgInvalidText, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.Orchestrator.ClassifyText(r.Context(), req.Text))
}

func (s *AppState) handlePredictImage(w http.ResponseWriter, r *http.Request) {
	if err := s.parseForm(w, r); err != nil {
		writeFormError(w, err)
		return
	}
	defer s.removeMultipart(r)

	up, closeFile, err := imageFromForm(r)
	if err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	defer closeFile()

	res, err := s.Orchestrator.ClassifyImage(r.Context(), up)
	if err != nil {
		writeClassifyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *AppState) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

// parseForm accepts multipart and urlencoded bodies up to the upload limit.
func (s *AppState) parseForm(w http.ResponseWriter, r *http.Request) error {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := r.ParseMultipartForm(limit)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func writeFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		sendErrorResponse(w, "payload_too_large", err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
}

func (s *AppState) removeMultipart(r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		s.Log.Warn("Failed to remove multipart temp files", zap.Error(err))
	}
}

// imageFromForm returns the "image" part, or nil when the request has none.
func imageFromForm(r *http.Request) (*orchestrator.ImageUpload, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return uploadFromPart(file, header), func() { _ = file.Close() }, nil
}

func uploadFromPart(file multipart.File, header *multipart.FileHeader) *orchestrator.ImageUpload {
	return &orchestrator.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        file,
	}
}
