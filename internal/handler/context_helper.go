package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-registration-api/internal/middleware"
	"github.com/noah-isme/lesson-registration-api/internal/service"
	appErrors "github.com/noah-isme/lesson-registration-api/pkg/errors"
)

type tableResolver interface {
	TableFor(period string) (string, error)
}

// mutationOptions derives the caller context of a write from the JWT claims and the optional
// trimester query parameter.
func mutationOptions(c *gin.Context, router tableResolver) (service.MutationOptions, error) {
	claims := middleware.Claims(c)
	if claims == nil {
		return service.MutationOptions{}, appErrors.ErrUnauthorized
	}
	opts := service.MutationOptions{Actor: claims.Actor(), Privileged: claims.Role.Privileged()}
	if trimester := strings.TrimSpace(c.Query("trimester")); trimester != "" {
		table, err := router.TableFor(trimester)
		if err != nil {
			return service.MutationOptions{}, err
		}
		opts.Table = table
	}
	return opts, nil
}

func requestContext(c *gin.Context) context.Context {
	return c.Request.Context()
}
