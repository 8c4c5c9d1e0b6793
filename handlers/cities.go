package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arrively-api/apperr"
	"arrively-api/models"
)

type CreateCitiesRequest struct {
	Cities []struct {
		Name string `json:"name" binding:"required,max=100"`
	} `json:"cities" binding:"required,min=1,max=500,dive"`
}

func (h *Handler) ListCities(c *gin.Context) {
	var cities []models.City
	query := h.db.Order("name")
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if err := query.Find(&cities).Error; err != nil {
		h.fail(c, apperr.Internal("failed to list cities", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(cities), "cities": cities})
}

// CreateCities inserts a batch of cities in one statement
func (h *Handler) CreateCities(c *gin.Context) {
	var req CreateCitiesRequest
	if !h.bind(c, &req) {
		return
	}
	cities := make([]models.City, 0, len(req.Cities))
	for _, in := range req.Cities {
		cities = append(cities, models.City{Name: in.Name})
	}
	if err := h.db.Create(&cities).Error; err != nil {
		h.fail(c, apperr.Internal("failed to create cities", err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(cities), "cities": cities})
}
