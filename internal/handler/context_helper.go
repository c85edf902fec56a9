package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-pickup-api/internal/models"
	appErrors "github.com/noah-isme/sma-pickup-api/pkg/errors"
)

// channelFromQuery extracts a class channel from ?year=&className= parameters.
func channelFromQuery(c *gin.Context) (models.ClassChannel, error) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 1 {
		return models.ClassChannel{}, appErrors.Clone(appErrors.ErrValidation, "year must be a positive integer")
	}
	label := c.Query("className")
	if label == "" {
		return models.ClassChannel{}, appErrors.Clone(appErrors.ErrValidation, "className is required")
	}
	return models.ClassChannel{Year: year, Label: label}, nil
}

// channelFromParams extracts a class channel from :year/:className path segments.
func channelFromParams(c *gin.Context) (models.ClassChannel, error) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 {
		return models.ClassChannel{}, appErrors.Clone(appErrors.ErrValidation, "year must be a positive integer")
	}
	label := c.Param("className")
	if label == "" {
		return models.ClassChannel{}, appErrors.Clone(appErrors.ErrValidation, "className is required")
	}
	return models.ClassChannel{Year: year, Label: label}, nil
}
