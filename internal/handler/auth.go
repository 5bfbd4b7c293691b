package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bbdist/internal/httpio"
	"bbdist/internal/model"
	"bbdist/internal/service"
)

type credentials struct {
	Login    string   `json:"login"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

var knownRoles = map[string]bool{
	model.RoleDistributionTech: true,
	model.RoleSupervisor:       true,
}

// RegisterHandler is public. Every self-registered account is a
// DISTRIBUTION_TECH; requested roles are ignored.
func RegisterHandler(authSvc AuthService, issuer TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}

		if strings.TrimSpace(req.Login) == "" || req.Password == "" {
			_ = httpio.BadRequestResponse(w, "login and password required")
			return
		}

		user, err := authSvc.Register(r.Context(), req.Login, req.Password, []string{model.RoleDistributionTech})
		if err != nil {
			writeRegisterError(w, err)
			return
		}

		writeToken(w, issuer, user)
	}
}

// CreateUserHandler lets a supervisor create accounts with explicit roles.
// It is mounted behind mw.RequireRole(model.RoleSupervisor).
func CreateUserHandler(authSvc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}

		if strings.TrimSpace(req.Login) == "" || req.Password == "" {
			_ = httpio.BadRequestResponse(w, "login and password required")
			return
		}
		if len(req.Roles) == 0 {
			req.Roles = []string{model.RoleDistributionTech}
		}
		for _, role := range req.Roles {
			if !knownRoles[role] {
				_ = httpio.BadRequestResponse(w, "unknown role "+role)
				return
			}
		}

		user, err := authSvc.Register(r.Context(), req.Login, req.Password, req.Roles)
		if err != nil {
			writeRegisterError(w, err)
			return
		}
		_ = httpio.WriteJSON(w, http.StatusCreated, user)
	}
}

func writeRegisterError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrLoginTaken) {
		_ = httpio.ErrorResponse(w, http.StatusConflict, err.Error())
		return
	}
	slog.Error("register failed", "error", err)
	_ = httpio.InternalServerErrorResponse(w)
}

func LoginHandler(authSvc AuthService, issuer TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req credentials
		if err := httpio.Decode(r.Body, &req); err != nil {
			_ = httpio.BadRequestResponse(w, "invalid json")
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Login, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				_ = httpio.ErrorResponse(w, http.StatusUnauthorized, err.Error())
				return
			}
			slog.Error("login failed", "error", err)
			_ = httpio.InternalServerErrorResponse(w)
			return
		}

		writeToken(w, issuer, user)
	}
}

func writeToken(w http.ResponseWriter, issuer TokenIssuer, user *model.User) {
	tokenString, err := issuer.Issue(user.Login, user.Roles)
	if err != nil {
		slog.Error("token generation failed", "error", err)
		_ = httpio.InternalServerErrorResponse(w)
		return
	}

	w.Header().Set("Authorization", "Bearer "+tokenString)
	_ = httpio.WriteJSON(w, http.StatusOK, map[string]any{
		"token": tokenString,
		"user":  user,
	})
}
