package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionConfig for the Redis-backed viewer session. The auth subsystem
// writes these sessions; this engine only reads them to learn who is
// viewing.
type SessionConfig struct {
	Secret       string
	RedisURL     string
	IsProduction bool
}

const (
	sessionCookieName = "tixhold.sid"
	sessionPrefix     = "session:"
	sessionMaxAge     = 24 * time.Hour
)

// SessionViewer is the identity stored in the session under "viewer".
type SessionViewer struct {
	UserID      string  `json:"user_id"`
	Role        string  `json:"role"`
	OrganizerID *string `json:"organizer_id"`
}

// Session returns a Fiber middleware that loads the session from Redis and
// exposes the viewer (if any) through Locals. Anonymous requests still get
// a session id so storefront accesses can be grouped per browser.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)

	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(sessionCookieName)
		if strings.HasPrefix(sessionID, "s:") {
			parts := strings.SplitN(sessionID[2:], ".", 2)
			sessionID = parts[0]
		}

		var data map[string]interface{}
		if sessionID != "" {
			b, err := rdb.Get(context.Background(), sessionPrefix+sessionID).Bytes()
			if err == nil {
				_ = json.Unmarshal(b, &data)
			}
		}
		if sessionID == "" {
			// Fresh anonymous session: mint an id and set the cookie so
			// repeat views share one session key.
			sessionID = uuid.New().String()
			c.Cookie(&fiber.Cookie{
				Name:     sessionCookieName,
				Value:    "s:" + sessionID,
				HTTPOnly: true,
				Secure:   cfg.IsProduction,
				MaxAge:   int(sessionMaxAge / time.Second),
			})
		}
		if data == nil {
			data = make(map[string]interface{})
		}

		c.Locals("session_data", data)
		if v, ok := data["viewer"]; ok {
			c.Locals("viewer", v)
		} else {
			c.Locals("viewer", nil)
		}
		c.Locals("session_id", sessionID)

		return c.Next()
	}, rdb, nil
}

// GetSessionID returns the current session ID from context.
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("session_id").(string)
	return sid
}

// GetViewer returns the authenticated viewer, or nil for anonymous requests.
func GetViewer(c *fiber.Ctx) *SessionViewer {
	m, ok := c.Locals("viewer").(map[string]interface{})
	if !ok {
		return nil
	}
	v := &SessionViewer{}
	v.UserID, _ = m["user_id"].(string)
	v.Role, _ = m["role"].(string)
	if org, ok := m["organizer_id"].(string); ok && org != "" {
		v.OrganizerID = &org
	}
	if v.UserID == "" {
		return nil
	}
	return v
}

// ViewerUserID parses the viewer's user id, or nil when anonymous.
func ViewerUserID(c *fiber.Ctx) *uuid.UUID {
	v := GetViewer(c)
	if v == nil {
		return nil
	}
	id, err := uuid.Parse(v.UserID)
	if err != nil {
		return nil
	}
	return &id
}
