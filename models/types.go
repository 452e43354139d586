package models

import (
	"context"
	"time"
)

type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Prediction is the common wire shape of image detections and text matches.
type Prediction interface {
	Label() string
	Score() float64
}

type Detection struct {
	ID         int     `json:"id"`
	ClassName  string  `json:"class_name"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

func (d Detection) Label() string  { return d.ClassName }
func (d Detection) Score() float64 { return d.Confidence }

type TextMatch struct {
	ClassName      string  `json:"class_name"`
	Confidence     float64 `json:"confidence"`
	MatchedKeyword string  `json:"matched_keyword"`
}

func (m TextMatch) Label() string  { return m.ClassName }
func (m TextMatch) Score() float64 { return m.Confidence }

// ClassificationResult is what a classifier hands back to the orchestrator.
// A failed image classification is still a value: Success is false and Error
// carries the cause.
type ClassificationResult struct {
	Success         bool         `json:"success"`
	Predictions     []Prediction `json:"predictions"`
	TotalDetections int          `json:"total_detections"`
	Message         string       `json:"message"`
	Error           string       `json:"error,omitempty"`
}

// PredictionResult is the public response body of every predict endpoint.
type PredictionResult struct {
	Success        bool         `json:"success"`
	Predictions    []Prediction `json:"predictions"`
	Message        string       `json:"message"`
	ProcessingTime *float64     `json:"processing_time,omitempty"`
}

type ProcessingTimings struct {
	RequestID   string
	ImageDecode time.Duration
	Letterbox   time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Masks       time.Duration
	Total       time.Duration
}

type timingsKey struct{}

// WithTimings attaches t to ctx so the detection engine can fill in its stages.
func WithTimings(ctx context.Context, t *ProcessingTimings) context.Context {
	return context.WithValue(ctx, timingsKey{}, t)
}

// TimingsFrom returns the timings attached to ctx, or a throwaway value.
func TimingsFrom(ctx context.Context) *ProcessingTimings {
	if t, ok := ctx.Value(timingsKey{}).(*ProcessingTimings); ok && t != nil {
		return t
	}
	return &ProcessingTimings{}
}
