// controllers/admin_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/truesuntrading/warranty_backend/middleware"
	"github.com/truesuntrading/warranty_backend/models"
	"github.com/truesuntrading/warranty_backend/repositories"
)

// superadminDomain is the email domain granted the super_admin role at
// registration time.
const superadminDomain = "truesuntradingcompany.com"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// AdminController handles admin authentication and account management.
type AdminController struct {
	DB      *mongo.Database
	LogRepo *repositories.AdminLogRepository
}

func NewAdminController(db *mongo.Database, logRepo *repositories.AdminLogRepository) *AdminController {
	return &AdminController{DB: db, LogRepo: logRepo}
}

// Login authenticates an admin and issues JWT tokens. Every successful login
// is recorded in the audit log.
func (ac *AdminController) Login(c echo.Context) error {
	var loginReq models.AdminLoginRequest
	if err := c.Bind(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&loginReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email and password are required",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var admin models.Admin
	err := ac.DB.Collection("admins").FindOne(ctx, bson.M{
		"email": strings.ToLower(strings.TrimSpace(loginReq.Email)),
	}).Decode(&admin)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(loginReq.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}

	accessToken, refreshToken, err := middleware.GenerateJWT(admin.ID.Hex(), admin.Email, admin.UserType)
	if err != nil {
		log.Printf("Failed to generate tokens for %s: %v", admin.Email, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate authentication tokens",
		})
	}

	if err := ac.LogRepo.Log(ctx, admin.Email, models.ActionLogin, models.LogDetails{}); err != nil {
		log.Printf("Failed to record login for %s: %v", admin.Email, err)
	}

	admin.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
			"admin":        admin,
		},
	})
}

// RegisterAdmin creates a new admin account. Superadmin only.
func (ac *AdminController) RegisterAdmin(c echo.Context) error {
	var registerReq models.AdminRegisterRequest
	if err := c.Bind(&registerReq); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	email := strings.ToLower(strings.TrimSpace(registerReq.Email))
	if !isValidEmail(email) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid email address",
		})
	}
	if !isStrongPassword(registerReq.Password) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters with upper, lower and numeric characters",
		})
	}

	userType := registerReq.UserType
	if userType == "" {
		userType = "admin"
	}
	if userType == "super_admin" && !strings.HasSuffix(email, "@"+superadminDomain) {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Superadmin accounts are restricted to the company domain",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admins := ac.DB.Collection("admins")
	count, err := admins.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to check existing accounts",
		})
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "An account with this email already exists",
		})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(registerReq.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	now := time.Now()
	admin := models.Admin{
		Email:     email,
		Password:  string(hashed),
		FullName:  registerReq.FullName,
		UserType:  userType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := admins.InsertOne(ctx, admin)
	if err != nil {
		log.Printf("Failed to create admin %s: %v", email, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create admin account",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Admin account created successfully",
		Data: map[string]interface{}{
			"id":       result.InsertedID,
			"email":    email,
			"userType": userType,
		},
	})
}

// Logout revokes the presented access token.
func (ac *AdminController) Logout(c echo.Context) error {
	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing bearer token",
		})
	}

	expiry := time.Now().Add(24 * time.Hour)
	claims := &middleware.JwtCustomClaims{}
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims)
	if err == nil && token != nil && claims.ExpiresAt > 0 {
		expiry = time.Unix(claims.ExpiresAt, 0)
	}

	middleware.BlacklistToken(tokenString, expiry)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Logged out successfully",
	})
}

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func isStrongPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}
