package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/middleware"
	"arrively-api/models"
	"arrively-api/statemachine"
)

// resolveActor picks the state-machine actor for a transition. held lists,
// in order of preference, the actors the caller's identity entitles them to
// play on this record. An empty request takes the first one held; naming an
// actor the caller does not hold is refused.
func resolveActor(m *statemachine.Machine, held []string, requested string) (string, error) {
	if requested != "" && !m.ValidActor(requested) {
		return "", apperr.Validation("actor must be one of: " + strings.Join(m.Actors(), ", "))
	}
	what := strings.ReplaceAll(m.Name(), "_", " ")
	if len(held) == 0 {
		return "", apperr.Forbidden("You cannot change the status of this " + what)
	}
	if requested == "" {
		return held[0], nil
	}
	for _, a := range held {
		if a == requested {
			return a, nil
		}
	}
	return "", apperr.Forbidden("You cannot act as " + requested + " on this " + what)
}

func isStaff(c *gin.Context) bool {
	return middleware.GetRole(c) == models.RoleStaff
}

// drivesAs reports whether the caller is the account linked to driver.
func drivesAs(c *gin.Context, driver *models.Driver) bool {
	return driver.UserID != nil && *driver.UserID == middleware.GetUserID(c)
}

// authorizeDriver allows fleet changes by the driver's own account or staff.
func authorizeDriver(c *gin.Context, driver *models.Driver) error {
	if drivesAs(c, driver) || isStaff(c) {
		return nil
	}
	return apperr.Forbidden("This driver is not linked to your account")
}
