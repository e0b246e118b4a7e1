package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/models"
	"murmur/internal/moderation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const serverTestSecret = "server-test-secret"

// classifierFunc adapts a function into a moderation.Classifier.
type classifierFunc func(ctx context.Context, text string) (moderation.Verdict, error)

func (f classifierFunc) Classify(ctx context.Context, text string) (moderation.Verdict, error) {
	return f(ctx, text)
}

func cleanClassifier() classifierFunc {
	return func(_ context.Context, _ string) (moderation.Verdict, error) {
		return moderation.Verdict{}, nil
	}
}

func serverTestConfig() *config.Config {
	return &config.Config{
		Port:                "0",
		Env:                 "test",
		JWTSecret:           serverTestSecret,
		ModerationTimeout:   time.Second,
		OnModerationFailure: config.ModerationAllow,
		DeleteScope:         config.DeletePostOnly,
	}
}

// newTestApp wires a full application against an in-memory database with no
// Redis client, so the cache degrades to pass-through.
func newTestApp(t *testing.T, cfg *config.Config, classifier moderation.Classifier) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cache.SetClient(nil)

	srv, err := NewServerWithDeps(cfg, db, nil, classifier)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return app
}

func bearer(t *testing.T, userID, name string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(serverTestSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, authHeader string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

func TestAPI_Health(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())

	resp := doRequest(t, app, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPI_WriteEndpointsRequireAuth(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())

	id := "11111111-1111-1111-1111-111111111111"
	tests := []struct {
		method string
		path   string
	}{
		{fiber.MethodPost, "/api/posts"},
		{fiber.MethodPut, "/api/posts/" + id},
		{fiber.MethodDelete, "/api/posts/" + id},
		{fiber.MethodPost, "/api/posts/" + id + "/like"},
		{fiber.MethodDelete, "/api/posts/" + id + "/like"},
		{fiber.MethodPost, "/api/posts/" + id + "/comments"},
		{fiber.MethodDelete, "/api/posts/" + id + "/comments/" + id},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := doRequest(t, app, tt.method, tt.path, "", nil)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

			var body models.ErrorResponse
			decodeBody(t, resp, &body)
			assert.Equal(t, models.CodeUnauthorized, body.Code)
		})
	}
}

func TestAPI_RejectsBadTokens(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())

	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", "Bearer not-a-jwt", fiber.Map{
		"title": "t", "content": "c",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_InvalidPostID(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())

	resp := doRequest(t, app, fiber.MethodGet, "/api/posts/not-a-uuid", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, models.CodeValidation, body.Code)
}

func TestAPI_CreatePost_Validation(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())
	auth := bearer(t, "b97cd84a-9368-4123-9fd9-74d2dd9571dc", "Ada")

	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", auth, fiber.Map{
		"title":   "",
		"content": "body",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, models.CodeValidation, body.Code)
}

func TestAPI_PostLifecycle(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())

	authorID := "b97cd84a-9368-4123-9fd9-74d2dd9571dc"
	readerID := "4d7f1c9e-8f5a-4f89-8a8f-0cbb9b1a2c55"
	author := bearer(t, authorID, "Ada Lovelace")
	reader := bearer(t, readerID, "Grace Hopper")

	// Create
	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", author, fiber.Map{
		"title":   "First light",
		"content": "Hello from the new engine.",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var post models.Post
	decodeBody(t, resp, &post)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, authorID, post.AuthorID)
	assert.Equal(t, "Ada Lovelace", post.AuthorName)
	assert.False(t, post.IsFlagged)

	// Anonymous list sees it, unliked
	resp = doRequest(t, app, fiber.MethodGet, "/api/posts", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var posts []models.Post
	decodeBody(t, resp, &posts)
	require.Len(t, posts, 1)
	assert.False(t, posts[0].Liked)

	// Liking is idempotent
	for i := 0; i < 2; i++ {
		resp = doRequest(t, app, fiber.MethodPost, "/api/posts/"+post.ID+"/like", reader, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
	var liked models.Post
	decodeBody(t, resp, &liked)
	assert.Equal(t, 1, liked.Likes)
	assert.True(t, liked.Liked)

	// The reader's list view reflects the like
	resp = doRequest(t, app, fiber.MethodGet, "/api/posts", reader, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &posts)
	require.Len(t, posts, 1)
	assert.True(t, posts[0].Liked)
	assert.Equal(t, 1, posts[0].Likes)

	// Comment
	resp = doRequest(t, app, fiber.MethodPost, "/api/posts/"+post.ID+"/comments", reader, fiber.Map{
		"text": "Lovely.",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var comment models.Comment
	decodeBody(t, resp, &comment)
	assert.Equal(t, post.ID, comment.PostID)
	assert.Equal(t, readerID, comment.AuthorID)

	resp = doRequest(t, app, fiber.MethodGet, "/api/posts/"+post.ID, "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var fetched models.Post
	decodeBody(t, resp, &fetched)
	assert.Equal(t, 1, fetched.VisibleComments)

	resp = doRequest(t, app, fiber.MethodGet, "/api/posts/"+post.ID+"/comments", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var comments []models.Comment
	decodeBody(t, resp, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "Lovely.", comments[0].Text)

	// Author pages
	resp = doRequest(t, app, fiber.MethodGet, "/api/users/"+authorID+"/posts", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &posts)
	require.Len(t, posts, 1)

	// Comment author removes their comment
	resp = doRequest(t, app, fiber.MethodDelete,
		"/api/posts/"+post.ID+"/comments/"+comment.ID, reader, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodGet, "/api/posts/"+post.ID, "", nil)
	decodeBody(t, resp, &fetched)
	assert.Equal(t, 0, fetched.VisibleComments)

	// Unlike restores the counter
	resp = doRequest(t, app, fiber.MethodDelete, "/api/posts/"+post.ID+"/like", reader, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &liked)
	assert.Equal(t, 0, liked.Likes)
	assert.False(t, liked.Liked)

	// Only the author may update or delete
	resp = doRequest(t, app, fiber.MethodPut, "/api/posts/"+post.ID, reader, fiber.Map{
		"title": "Hijacked", "content": "nope",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodDelete, "/api/posts/"+post.ID, reader, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodPut, "/api/posts/"+post.ID, author, fiber.Map{
		"title": "First light, revised", "content": "Hello again.",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &fetched)
	assert.Equal(t, "First light, revised", fetched.Title)

	resp = doRequest(t, app, fiber.MethodDelete, "/api/posts/"+post.ID, author, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodGet, "/api/posts/"+post.ID, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAPI_FlaggedContentHidden(t *testing.T) {
	flagging := classifierFunc(func(_ context.Context, _ string) (moderation.Verdict, error) {
		return moderation.Verdict{Flagged: true, Reason: "hate"}, nil
	})
	app := newTestApp(t, serverTestConfig(), flagging)
	auth := bearer(t, "b97cd84a-9368-4123-9fd9-74d2dd9571dc", "Ada")

	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", auth, fiber.Map{
		"title": "Awful take", "content": "awful content",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var post models.Post
	decodeBody(t, resp, &post)
	assert.True(t, post.IsFlagged)
	assert.Equal(t, "hate", post.ModerationReason)

	// Flagged posts do not surface on read paths
	resp = doRequest(t, app, fiber.MethodGet, "/api/posts/"+post.ID, "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, fiber.MethodGet, "/api/posts", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var posts []models.Post
	decodeBody(t, resp, &posts)
	assert.Empty(t, posts)

	// the author can still edit and remove their own flagged post
	resp = doRequest(t, app, fiber.MethodPut, "/api/posts/"+post.ID, auth, fiber.Map{
		"title": "Toned down", "content": "reworded",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var updated models.Post
	decodeBody(t, resp, &updated)
	assert.Equal(t, "Toned down", updated.Title)

	resp = doRequest(t, app, fiber.MethodDelete, "/api/posts/"+post.ID, auth, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestAPI_ModerationDown_AllowPolicy(t *testing.T) {
	down := classifierFunc(func(_ context.Context, _ string) (moderation.Verdict, error) {
		return moderation.Verdict{}, errors.New("connection refused")
	})
	app := newTestApp(t, serverTestConfig(), down)
	auth := bearer(t, "b97cd84a-9368-4123-9fd9-74d2dd9571dc", "Ada")

	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", auth, fiber.Map{
		"title": "Still publishes", "content": "body",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var post models.Post
	decodeBody(t, resp, &post)
	assert.False(t, post.IsFlagged)
	assert.Equal(t, moderation.ReasonUnavailable, post.ModerationReason)
}

func TestAPI_ModerationDown_RejectPolicy(t *testing.T) {
	down := classifierFunc(func(_ context.Context, _ string) (moderation.Verdict, error) {
		return moderation.Verdict{}, errors.New("connection refused")
	})
	cfg := serverTestConfig()
	cfg.OnModerationFailure = config.ModerationReject
	app := newTestApp(t, cfg, down)
	auth := bearer(t, "b97cd84a-9368-4123-9fd9-74d2dd9571dc", "Ada")

	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", auth, fiber.Map{
		"title": "Blocked", "content": "body",
	})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var body models.ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, models.CodeUnavailable, body.Code)
}

func TestAPI_DeleteComment_NotAuthor(t *testing.T) {
	app := newTestApp(t, serverTestConfig(), cleanClassifier())

	author := bearer(t, "b97cd84a-9368-4123-9fd9-74d2dd9571dc", "Ada")
	commenter := bearer(t, "4d7f1c9e-8f5a-4f89-8a8f-0cbb9b1a2c55", "Grace")
	stranger := bearer(t, "9e107d9d-3721-4c93-a7d0-5c4b62e1a9a3", "Mallory")

	resp := doRequest(t, app, fiber.MethodPost, "/api/posts", author, fiber.Map{
		"title": "A post", "content": "body",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var post models.Post
	decodeBody(t, resp, &post)

	resp = doRequest(t, app, fiber.MethodPost, "/api/posts/"+post.ID+"/comments", commenter, fiber.Map{
		"text": "mine",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var comment models.Comment
	decodeBody(t, resp, &comment)

	resp = doRequest(t, app, fiber.MethodDelete,
		"/api/posts/"+post.ID+"/comments/"+comment.ID, stranger, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The comment is still there
	resp = doRequest(t, app, fiber.MethodGet, "/api/posts/"+post.ID+"/comments", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var comments []models.Comment
	decodeBody(t, resp, &comments)
	assert.Len(t, comments, 1)
}
