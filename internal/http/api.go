package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"fireblob"
	"fireblob/internal/domain"
	"fireblob/internal/repository"
	"fireblob/internal/service"
	"fireblob/internal/uploader"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	transfers service.TransferService
	users     service.UserService
	manager   uploader.Manager
	storage   *fireblob.Storage
	spoolDir  string
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(
	transfers service.TransferService,
	users service.UserService,
	manager uploader.Manager,
	storage *fireblob.Storage,
	spoolDir string,
	jwtSecret string,
	tokenTTL time.Duration,
) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &Handler{
		transfers: transfers,
		users:     users,
		manager:   manager,
		storage:   storage,
		spoolDir:  spoolDir,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())

	router.GET("/api/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	api := router.Group("/api", h.authRequired())
	{
		api.GET("/auth/me", h.me)
		api.POST("/objects/*path", h.uploadObject)
		api.DELETE("/objects/*path", h.deleteObject)
		api.GET("/metadata/*path", h.objectMetadata)
		api.GET("/download-url/*path", h.objectDownloadURL)
		api.GET("/list", h.listObjects)
		api.GET("/transfers", h.listTransfers)
		api.GET("/transfers/:id", h.getTransfer)
		api.DELETE("/transfers/:id", h.deleteTransfer)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type authClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	Password       string `json:"password" binding:"required"`
	RegisterSecret string `json:"register_secret" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.RegisterSecret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRegisterSecret):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrUserAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now()
	claims := authClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      signed,
		"expires_at": claims.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &authClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) {
			return h.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}
		c.Set("user_id", userID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

func (h *Handler) me(c *gin.Context) {
	userID := c.GetInt64("user_id")
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

// objectPathParam extracts and validates the object path from a wildcard
// route parameter.
func objectPathParam(c *gin.Context) (string, bool) {
	path := strings.Trim(c.Param("path"), "/")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object path is required"})
		return "", false
	}
	return path, true
}

func (h *Handler) uploadObject(c *gin.Context) {
	objectPath, ok := objectPathParam(c)
	if !ok {
		return
	}

	spoolPath := filepath.Join(h.spoolDir, fmt.Sprintf("transfer-%s", uuid.NewString()))
	size, err := spoolBody(spoolPath, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	transfer, err := h.transfers.Create(c.Request.Context(), objectPath, c.ContentType(), spoolPath, size)
	if err != nil {
		if removeErr := os.Remove(spoolPath); removeErr != nil {
			err = fmt.Errorf("%w (leftover spool file: %v)", err, removeErr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.manager.Enqueue(c.Request.Context(), transfer.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, transferToResponse(*transfer))
}

// spoolBody stages the request body on disk so the upload can outlive the
// HTTP request and survive a daemon restart.
func spoolBody(path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create spool file: %w", err)
	}

	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(path)
		return 0, fmt.Errorf("spool request body: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("close spool file: %w", err)
	}
	return n, nil
}

func (h *Handler) deleteObject(c *gin.Context) {
	objectPath, ok := objectPathParam(c)
	if !ok {
		return
	}

	if err := h.storage.Ref(objectPath).Delete(c.Request.Context()); err != nil {
		remoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": objectPath})
}

func (h *Handler) objectMetadata(c *gin.Context) {
	objectPath, ok := objectPathParam(c)
	if !ok {
		return
	}

	meta, err := h.storage.Ref(objectPath).Metadata(c.Request.Context())
	if err != nil {
		remoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *Handler) objectDownloadURL(c *gin.Context) {
	objectPath, ok := objectPathParam(c)
	if !ok {
		return
	}

	url, err := h.storage.Ref(objectPath).DownloadURL(c.Request.Context())
	if err != nil {
		if errors.Is(err, fireblob.ErrNoDownloadToken) {
			c.JSON(http.StatusConflict, gin.H{"error": "object has no download token"})
			return
		}
		remoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

func (h *Handler) listObjects(c *gin.Context) {
	maxResults := 0
	if raw := c.Query("max_results"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_results"})
			return
		}
		maxResults = parsed
	}

	ref := h.storage.Ref(c.Query("prefix"))
	pageToken := c.Query("page_token")

	switch kind := c.DefaultQuery("kind", "files"); kind {
	case "files":
		list, err := ref.ListFiles(c.Request.Context(), maxResults, pageToken)
		if err != nil {
			remoteError(c, err)
			return
		}
		objects := make([]ObjectResponse, len(list.Objects))
		for i := range list.Objects {
			objects[i] = ObjectResponse{
				Name:   list.Objects[i].Name,
				Bucket: list.Objects[i].Bucket,
			}
		}
		c.JSON(http.StatusOK, gin.H{"objects": objects, "next_page_token": list.NextPageToken})
	case "prefixes":
		list, err := ref.ListPrefixes(c.Request.Context(), maxResults, pageToken)
		if err != nil {
			remoteError(c, err)
			return
		}
		prefixes := list.Prefixes
		if prefixes == nil {
			prefixes = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"prefixes": prefixes, "next_page_token": list.NextPageToken})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be files or prefixes"})
	}
}

func (h *Handler) listTransfers(c *gin.Context) {
	transfers, err := h.transfers.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]TransferResponse, len(transfers))
	for i := range transfers {
		resp[i] = transferToResponse(transfers[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTransfer(c *gin.Context) {
	id, ok := transferIDParam(c)
	if !ok {
		return
	}

	transfer, err := h.transfers.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, transferToResponse(*transfer))
}

func (h *Handler) deleteTransfer(c *gin.Context) {
	id, ok := transferIDParam(c)
	if !ok {
		return
	}

	transfer, err := h.transfers.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTransferNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var warnings []string
	if h.manager != nil {
		cancelCtx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		if err := h.manager.Cancel(cancelCtx, transfer.ID); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			warnings = append(warnings, fmt.Sprintf("cancel transfer: %v", err))
		}
	}

	if transfer.SpoolPath != "" {
		if err := os.Remove(transfer.SpoolPath); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("remove spool file: %v", err))
		}
	}

	if err := h.transfers.Delete(c.Request.Context(), transfer.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"deleted": transfer.ID}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

func transferIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transfer id"})
		return 0, false
	}
	return id, true
}

// remoteError maps a storage failure onto the gateway response: remote 404s
// pass through, anything else is a bad gateway.
func remoteError(c *gin.Context, err error) {
	var se *fireblob.StorageError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

type TransferResponse struct {
	ID           int64                 `json:"id"`
	ObjectPath   string                `json:"object_path"`
	ContentType  string                `json:"content_type"`
	Status       domain.TransferStatus `json:"status"`
	Progress     int                   `json:"progress"`
	BytesDone    int64                 `json:"bytes_done"`
	TotalBytes   int64                 `json:"total_bytes"`
	DownloadURL  string                `json:"download_url"`
	ErrorMessage string                `json:"error_message"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
	CompletedAt  *string               `json:"completed_at,omitempty"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

type ObjectResponse struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
}

func transferToResponse(transfer domain.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:           transfer.ID,
		ObjectPath:   transfer.ObjectPath,
		ContentType:  transfer.ContentType,
		Status:       transfer.Status,
		Progress:     transfer.Progress,
		BytesDone:    transfer.BytesDone,
		TotalBytes:   transfer.TotalBytes,
		DownloadURL:  transfer.DownloadURL,
		ErrorMessage: transfer.ErrorMessage,
		CreatedAt:    transfer.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    transfer.UpdatedAt.Format(time.RFC3339),
	}
	if transfer.CompletedAt != nil {
		v := transfer.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	return resp
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
