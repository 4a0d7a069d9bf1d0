package controllers

import (
	"context"
	"net/http"
	"strings"

	"amora_server/helpers"

	"github.com/rs/zerolog"
)

// PhotoStorage presigns photo uploads and reads.
type PhotoStorage interface {
	GenerateUploadURL(ctx context.Context, userID, fileName, contentType string) (string, string, error)
	GenerateReadURL(ctx context.Context, key string) (string, error)
}

// S3Controller hands out presigned URLs for profile photos
type S3Controller struct {
	Storage PhotoStorage
	Log     zerolog.Logger
}

func NewS3Controller(storage PhotoStorage, log zerolog.Logger) *S3Controller {
	return &S3Controller{Storage: storage, Log: log.With().Str("controller", "s3").Logger()}
}

// GeneratePresignedURL generates a presigned URL for S3 uploads
func (c *S3Controller) GeneratePresignedURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if payload.FileName == "" || payload.FileType == "" {
		helpers.WriteError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	url, key, err := c.Storage.GenerateUploadURL(r.Context(), userID(r), payload.FileName, payload.FileType)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to generate pre-signed URL")
		return
	}
	c.Log.Debug().Str("key", key).Msg("presigned upload generated")
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url, "fileName": key})
}

// GetPresignedReadURL generates a presigned URL for reading a photo. Only
// objects under profile-pics/ can be read.
func (c *S3Controller) GetPresignedReadURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := helpers.DecodeJSON(r, &payload); err != nil || !strings.HasPrefix(payload.Key, "profile-pics/") {
		helpers.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	url, err := c.Storage.GenerateReadURL(r.Context(), payload.Key)
	if err != nil {
		writeServiceError(w, c.Log, err, "Failed to generate pre-signed URL")
		return
	}
	helpers.WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
