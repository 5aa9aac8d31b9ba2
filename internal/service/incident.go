package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ajali-app/backend/internal/apperror"
	"github.com/ajali-app/backend/internal/models"
)

type IncidentService struct {
	DB *gorm.DB
}

type CreateIncident struct {
	Title       string
	Description string
	Lat         string
	Long        string
	ImageURL    *string
	// CreatedAt is taken from the client when it sends a parseable
	// timestamp, otherwise the server assigns it.
	CreatedAt *time.Time
}

// IncidentPatch lists the updatable fields. A nil field was not supplied and
// is left untouched. The fixed column mapping in changes() is the only thing
// that ever turns a patch into SQL.
type IncidentPatch struct {
	Title       *string
	Description *string
	Lat         *string
	Long        *string
	Status      *string
	ImageURL    *string
}

func (p *IncidentPatch) changes() map[string]interface{} {
	out := map[string]interface{}{}
	if p.Title != nil {
		out["title"] = *p.Title
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Lat != nil {
		out["lat"] = *p.Lat
	}
	if p.Long != nil {
		out["long"] = *p.Long
	}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.ImageURL != nil {
		out["image_url"] = *p.ImageURL
	}
	return out
}

func (s *IncidentService) Create(userID string, in CreateIncident) (*models.Incident, error) {
	if in.Title == "" || in.Description == "" || in.Lat == "" || in.Long == "" {
		return nil, apperror.NewValidation("Missing required fields")
	}

	incident := models.Incident{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Lat:         in.Lat,
		Long:        in.Long,
		ImageURL:    in.ImageURL,
		Status:      "open",
	}
	if in.CreatedAt != nil {
		incident.CreatedAt = in.CreatedAt.UTC()
	}

	if err := s.DB.Create(&incident).Error; err != nil {
		return nil, apperror.NewDatabase("could not create incident", err)
	}
	return &incident, nil
}

func (s *IncidentService) List() ([]models.Incident, error) {
	var incidents []models.Incident
	if err := s.DB.Order("created_at DESC").Find(&incidents).Error; err != nil {
		return nil, apperror.NewDatabase("could not fetch incidents", err)
	}
	return incidents, nil
}

func (s *IncidentService) Get(id string) (*models.Incident, error) {
	var incident models.Incident
	if err := s.DB.Where("id = ?", id).First(&incident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("Incident not found.")
		}
		return nil, apperror.NewDatabase("could not fetch incident", err)
	}
	return &incident, nil
}

// Update applies the supplied fields only. The acting user must own the
// incident.
func (s *IncidentService) Update(actingUser, id string, patch IncidentPatch) (*models.Incident, error) {
	incident, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if incident.UserID != actingUser {
		return nil, apperror.NewForbidden("You do not have permission to update this incident.")
	}

	changes := patch.changes()
	if len(changes) == 0 {
		return nil, apperror.NewValidation("No fields provided for update.")
	}

	if err := s.DB.Model(&models.Incident{}).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, apperror.NewDatabase("could not update incident", err)
	}

	return s.Get(id)
}

// Delete removes an incident. Any authenticated user may delete any
// incident; there is deliberately no ownership check here.
func (s *IncidentService) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.DB.Where("id = ?", id).Delete(&models.Incident{}).Error; err != nil {
		return apperror.NewDatabase("could not delete incident", err)
	}
	return nil
}
