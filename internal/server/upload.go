package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"clipshelf/internal/api"
	"clipshelf/internal/lifecycle"
	"clipshelf/internal/logging"
	"clipshelf/internal/services"
)

const multipartOverhead = 64 << 10

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	decision, _ := s.decision(r)
	if err := decision.Require("ingest"); err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := s.clips.Limits().MaxBytes + s.cfg.API.MaxMetadataBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "expected a multipart/form-data body", err))
		return
	}

	req := lifecycle.IngestRequest{Size: -1}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "upload has no file part", nil))
			return
		}
		if err != nil {
			s.writeError(w, r, uploadReadError(err))
			return
		}

		switch part.FormName() {
		case api.UploadFieldName, api.UploadFieldDescription, api.UploadFieldSize:
			value, err := s.readField(part)
			part.Close()
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if err := assignField(&req, part.FormName(), value); err != nil {
				s.writeError(w, r, err)
				return
			}
		case api.UploadFieldFile:
			req.Filename = part.FileName()
			req.Body = part
			clip, err := s.clips.Ingest(r.Context(), decision, req)
			part.Close()
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			logging.WithContext(r.Context(), s.logger).Info("clip uploaded",
				logging.Int64(logging.FieldClipID, clip.ID),
				logging.String(logging.FieldClipUUID, clip.UUID),
				logging.String(logging.FieldEventType, "clip_uploaded"),
			)
			s.writeJSON(w, http.StatusCreated, api.ClipResponse{Clip: api.FromClip(clip)})
			return
		default:
			name := part.FormName()
			part.Close()
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("unexpected form field %q", name), nil))
			return
		}
	}
}

func (s *Server) readField(part io.Reader) (string, error) {
	maxBytes := s.cfg.API.MaxMetadataBytes
	raw, err := io.ReadAll(io.LimitReader(part, maxBytes+1))
	if err != nil {
		return "", uploadReadError(err)
	}
	if int64(len(raw)) > maxBytes {
		return "", services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("form field exceeds %d bytes", maxBytes), nil)
	}
	return string(raw), nil
}

func assignField(req *lifecycle.IngestRequest, field, value string) error {
	switch field {
	case api.UploadFieldName:
		req.Name = value
	case api.UploadFieldDescription:
		req.Description = value
	case api.UploadFieldSize:
		size, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || size < 0 {
			return services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("invalid size %q", value), nil)
		}
		req.Size = size
	}
	return nil
}

func uploadReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return services.Wrap(services.ErrValidation, "api", "upload", fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), nil)
	}
	return services.Wrap(services.ErrValidation, "api", "upload", "malformed multipart body", err)
}
