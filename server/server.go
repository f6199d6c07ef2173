package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"snapboard/models"
	"snapboard/upstream"
)

//go:embed dist/*
var dist embed.FS

// Upstream is the part of the upstream client the HTTP surface relays to
type Upstream interface {
	Posts(ctx context.Context, q upstream.PostsQuery) ([]json.RawMessage, error)
	Vote(ctx context.Context, postID string, p upstream.Payload) (*upstream.Relay, error)
	Favorite(ctx context.Context, p upstream.Payload) (*upstream.Relay, error)
	Unfavorite(ctx context.Context, postID string, p upstream.Payload) (*upstream.Relay, error)
	Comments(ctx context.Context, postID string) ([]models.Comment, error)
}

var _ Upstream = (*upstream.Client)(nil)

type ServerConfig struct {
	// Origins allowed to call the API from a browser
	AllowOrigins string

	// The upstream imageboard client
	Upstream Upstream
}

// Returns a fiber.App instance serving the proxy API and the static front-end
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		// start timer
		start := time.Now()

		// next routes
		err := c.Next()

		log.WithFields(log.Fields{
			"method":    c.Method(),
			"route":     c.Route().Path,
			"status":    c.Response().StatusCode(),
			"latency":   time.Since(start),
			"requestId": c.Locals("requestid"),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(compress.New())

	allowOrigins := config.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	api.Get("/posts", func(c *fiber.Ctx) error {
		query := upstream.PostsQuery{
			Tags:  c.Query("tags"),
			Page:  c.Query("page"),
			Limit: c.Query("limit"),
		}

		posts, err := config.Upstream.Posts(c.UserContext(), query)
		if err != nil {
			log.WithFields(log.Fields{
				"tags":  query.Tags,
				"page":  query.Page,
				"error": err,
			}).Error("Error fetching posts")
			return c.Status(http.StatusInternalServerError).JSON(models.ErrorResponse{Error: "Failed to fetch posts"})
		}

		return c.JSON(fiber.Map{"posts": posts})
	})

	api.Post("/posts/:id/vote", func(c *fiber.Ctx) error {
		payload, err := parsePayload(c.Body())
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: "Invalid request body"})
		}
		relay, err := config.Upstream.Vote(c.UserContext(), c.Params("id"), payload)
		return sendRelay(c, "vote", relay, err)
	})

	api.Post("/favorites", func(c *fiber.Ctx) error {
		payload, err := parsePayload(c.Body())
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: "Invalid request body"})
		}
		relay, err := config.Upstream.Favorite(c.UserContext(), payload)
		return sendRelay(c, "favorite", relay, err)
	})

	api.Delete("/favorites/:id", func(c *fiber.Ctx) error {
		payload, err := parsePayload(c.Body())
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(models.ErrorResponse{Error: "Invalid request body"})
		}
		relay, err := config.Upstream.Unfavorite(c.UserContext(), c.Params("id"), payload)
		return sendRelay(c, "unfavorite", relay, err)
	})

	api.Get("/comments/:postId", func(c *fiber.Ctx) error {
		postID := c.Params("postId")
		comments, err := config.Upstream.Comments(c.UserContext(), postID)
		if err != nil {
			failure := models.CommentsFailure{Error: "Failed to fetch comments"}

			var fallbackErr *upstream.FallbackError
			if errors.As(err, &fallbackErr) {
				failure.Detail = fallbackErr.Detail()
			}

			log.WithFields(log.Fields{
				"post":  postID,
				"error": err,
			}).Error("Error fetching comments")
			return c.Status(http.StatusBadGateway).JSON(failure)
		}

		return c.JSON(comments)
	})

	// Serve the front-end
	app.Use("/", filesystem.New(filesystem.Config{
		Browse:     false,
		Index:      "index.html",
		Root:       http.FS(dist),
		PathPrefix: "dist",
	}))

	return app
}

// parsePayload decodes a mutation body. An empty body is an empty payload,
// anything but a JSON object is an error.
func parsePayload(body []byte) (upstream.Payload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return upstream.Payload{}, nil
	}

	var payload upstream.Payload
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = upstream.Payload{}
	}
	return payload, nil
}

// sendRelay writes an upstream mutation reply back unchanged
func sendRelay(c *fiber.Ctx, action string, relay *upstream.Relay, err error) error {
	if err != nil {
		log.WithFields(log.Fields{
			"action": action,
			"error":  err,
		}).Error("Upstream mutation failed")
		return c.Status(http.StatusBadGateway).JSON(models.ErrorResponse{Error: "Upstream request failed"})
	}

	if relay.ContentType != "" {
		c.Set(fiber.HeaderContentType, relay.ContentType)
	}
	return c.Status(relay.Status).Send(relay.Body)
}
