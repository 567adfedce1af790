package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/api/middleware"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
)

type actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func actorFromRequest(r *http.Request) (actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return actor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	role := enums.UserRole(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	return actor{UserID: userID, Role: role}, nil
}
