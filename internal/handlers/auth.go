package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/ajali-app/backend/internal/apperror"
	"github.com/ajali-app/backend/internal/hash"
	authmw "github.com/ajali-app/backend/internal/middleware/auth"
	"github.com/ajali-app/backend/internal/models"
	"github.com/ajali-app/backend/internal/mykafka"
	"github.com/ajali-app/backend/internal/service"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *service.TokenService
	Producer *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("Username and password are required.")
	}
	if req.Username == "" || req.Password == "" {
		return apperror.NewValidation("Username and password are required.")
	}

	var existing models.User
	err := h.DB.Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		return apperror.NewConflict("User already exists.")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NewDatabase("could not check username", err)
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return apperror.NewInternal("could not hash password", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: passwordHash,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return apperror.NewDatabase("could not create user", err)
	}

	h.publish(c, map[string]interface{}{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully.",
		"user_id": user.ID,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperror.NewValidation("Username and password are required.")
	}
	if req.Username == "" || req.Password == "" {
		return apperror.NewValidation("Username and password are required.")
	}

	// Unknown username and wrong password get the same answer.
	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NewAuth("Invalid username or password.")
		}
		return apperror.NewDatabase("could not fetch user", err)
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return apperror.NewAuth("Invalid username or password.")
	}

	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		return err
	}

	h.publish(c, map[string]interface{}{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Login successful.",
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	userID := authmw.UserID(c)
	if err := h.Tokens.Revoke(userID, authmw.Token(c)); err != nil {
		return err
	}

	h.publish(c, map[string]interface{}{
		"type":   "user_logged_out",
		"userID": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "Logout successful."})
}
