package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/repository"
)

// Export formats accepted by StreamAttributions
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
	FormatCSV    = "csv"
)

// flushEvery is the number of records written between flushes
const flushEvery = 100

// exportService is the concrete implementation of ExportService
type exportService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repos *repository.Repositories, log zerolog.Logger) *exportService {
	return &exportService{
		repos: repos,
		log:   log.With().Str("service", "export").Logger(),
	}
}

// StreamAttributions streams the attributions of users with the given status
// in the specified format
func (s *exportService) StreamAttributions(ctx context.Context, w http.ResponseWriter, status, format string) error {
	if err := checkStatus(status); err != nil {
		return err
	}

	s.log.Info().Str("format", format).Str("status", status).Msg("Starting attributions export")

	switch format {
	case FormatNDJSON:
		return s.streamNDJSON(ctx, w, status)
	case FormatJSON, "":
		return s.streamJSON(ctx, w, status)
	case FormatCSV:
		return s.streamCSV(ctx, w, status)
	default:
		return invalidInput("format", "must be one of: json, ndjson, csv")
	}
}

func (s *exportService) streamNDJSON(ctx context.Context, w http.ResponseWriter, status string) error {
	w.Header().Set("Content-Type", "application/x-ndjson")

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	count := 0

	err := s.repos.Attribution.StreamAll(ctx, status, func(a *models.RoleAttribution) error {
		if err := enc.Encode(a); err != nil {
			return err
		}
		count++

		// Flush every 100 records for streaming
		if count%flushEvery == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("Attributions export completed")
	return err
}

func (s *exportService) streamJSON(ctx context.Context, w http.ResponseWriter, status string) error {
	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write([]byte("[")); err != nil {
		return err
	}
	first := true

	err := s.repos.Attribution.StreamAll(ctx, status, func(a *models.RoleAttribution) error {
		if !first {
			if _, err := w.Write([]byte(",")); err != nil {
				return err
			}
		}
		first = false

		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		return err
	}

	_, err = w.Write([]byte("]"))
	return err
}

func (s *exportService) streamCSV(ctx context.Context, w http.ResponseWriter, status string) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=role_attributions.csv")

	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write([]string{"id", "users_id", "roles_id", "username", "firstname", "lastname", "role"}); err != nil {
		return err
	}

	count := 0
	err := s.repos.Attribution.StreamAll(ctx, status, func(a *models.RoleAttribution) error {
		if err := writer.Write([]string{
			strconv.FormatInt(a.ID, 10),
			strconv.FormatInt(a.UserID, 10),
			strconv.FormatInt(a.RoleID, 10),
			a.Username,
			a.Firstname,
			a.Lastname,
			a.Role,
		}); err != nil {
			return err
		}
		count++

		if count%flushEvery == 0 {
			writer.Flush()
			return writer.Error()
		}
		return nil
	})
	if err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}
