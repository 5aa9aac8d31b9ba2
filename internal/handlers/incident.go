package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ajali-app/backend/internal/apperror"
	authmw "github.com/ajali-app/backend/internal/middleware/auth"
	"github.com/ajali-app/backend/internal/mykafka"
	"github.com/ajali-app/backend/internal/service"
	"github.com/ajali-app/backend/internal/upload"
)

type IncidentHandler struct {
	Incidents *service.IncidentService
	Uploads   *upload.Store
	Producer  *mykafka.Producer
}

func (h *IncidentHandler) publish(c echo.Context, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "incident_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// formPtr distinguishes "field absent" from "field empty": a nil result means
// the form never carried the key.
func formPtr(c echo.Context, name string) *string {
	values, err := c.FormParams()
	if err != nil {
		return nil
	}
	if v, ok := values[name]; ok && len(v) > 0 {
		s := v[0]
		return &s
	}
	return nil
}

// saveImage stores the optional "image" form file. No file at all is fine;
// a file with a bad extension fails the whole request.
func (h *IncidentHandler) saveImage(c echo.Context) (*string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperror.NewValidation("Invalid image upload.")
	}
	path, err := h.Uploads.Save(fh)
	if err != nil {
		return nil, err
	}
	return &path, nil
}

func (h *IncidentHandler) Create(c echo.Context) error {
	userID := authmw.UserID(c)

	imageURL, err := h.saveImage(c)
	if err != nil {
		return err
	}

	in := service.CreateIncident{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Lat:         c.FormValue("lat"),
		Long:        c.FormValue("long"),
		ImageURL:    imageURL,
	}
	if raw := c.FormValue("created_at"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			in.CreatedAt = &ts
		} else {
			c.Logger().Warnf("could not parse created_at %q, using server time", raw)
		}
	}

	incident, err := h.Incidents.Create(userID, in)
	if err != nil {
		return err
	}

	h.publish(c, map[string]interface{}{
		"type":       "incident_created",
		"userID":     userID,
		"incidentID": incident.ID,
		"title":      incident.Title,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message":  "Incident created successfully",
		"incident": incident,
	})
}

func (h *IncidentHandler) List(c echo.Context) error {
	incidents, err := h.Incidents.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, incidents)
}

func (h *IncidentHandler) Get(c echo.Context) error {
	incident, err := h.Incidents.Get(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, incident)
}

func (h *IncidentHandler) Update(c echo.Context) error {
	userID := authmw.UserID(c)
	id := c.Param("id")

	imageURL, err := h.saveImage(c)
	if err != nil {
		return err
	}

	patch := service.IncidentPatch{
		Title:       formPtr(c, "title"),
		Description: formPtr(c, "description"),
		Lat:         formPtr(c, "lat"),
		Long:        formPtr(c, "long"),
		Status:      formPtr(c, "status"),
		ImageURL:    imageURL,
	}

	incident, err := h.Incidents.Update(userID, id, patch)
	if err != nil {
		return err
	}

	h.publish(c, map[string]interface{}{
		"type":       "incident_updated",
		"userID":     userID,
		"incidentID": incident.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Incident updated successfully.",
		"incident": incident,
	})
}

func (h *IncidentHandler) Delete(c echo.Context) error {
	userID := authmw.UserID(c)
	id := c.Param("id")

	if err := h.Incidents.Delete(id); err != nil {
		return err
	}

	h.publish(c, map[string]interface{}{
		"type":       "incident_deleted",
		"userID":     userID,
		"incidentID": id,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Incident deleted successfully."})
}
