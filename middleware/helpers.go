package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dosada05/rating-system/models"
	"github.com/golang-jwt/jwt/v4"
)

// GetActorFromContext восстанавливает проверенного актора из claims,
// положенных Authenticate.
func GetActorFromContext(ctx context.Context) (models.Actor, error) {
	claims, ok := ctx.Value(actorContextKey).(jwt.MapClaims)
	if !ok {
		return models.Actor{}, errors.New("actor claims not found in context or invalid type")
	}

	userID, err := intClaim(claims, jwtClaimUserID)
	if err != nil {
		return models.Actor{}, err
	}
	playerID, err := intClaim(claims, jwtClaimPlayerID)
	if err != nil {
		return models.Actor{}, err
	}

	role := models.RolePlayer
	if roleClaim, ok := claims[jwtClaimRole].(string); ok && roleClaim != "" {
		role = models.UserRole(roleClaim)
	}

	return models.Actor{UserID: userID, PlayerID: playerID, Role: role}, nil
}

func intClaim(claims jwt.MapClaims, name string) (int, error) {
	raw, ok := claims[name]
	if !ok {
		return 0, fmt.Errorf("missing '%s' claim in token", name)
	}

	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("'%s' claim is not an integer: %f", name, v)
		}
		if int(v) <= 0 {
			return 0, fmt.Errorf("invalid value in '%s' claim: %d", name, int(v))
		}
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("invalid value in '%s' claim: %q", name, v)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("invalid type for '%s' claim: expected float64 or string, got %T", name, raw)
	}
}
