package main

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server wires the capture/extract/normalize/review pipeline and the
// inventory store behind the HTTP surface the UI consumes.
type Server struct {
	cfg      Config
	db       *sql.DB
	batches  *BatchRegistry
	glossary *FoodGlossary
}

func NewServer(cfg Config, db *sql.DB) (*Server, error) {
	var glossary *FoodGlossary
	if cfg.GlossaryPath != "" {
		g, err := LoadFoodGlossary(cfg.GlossaryPath)
		if err != nil {
			return nil, err
		}
		glossary = g
	}
	return &Server{
		cfg:      cfg,
		db:       db,
		batches:  NewBatchRegistry(cfg.Policy()),
		glossary: glossary,
	}, nil
}

func (s *Server) BuildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	e.GET("/api/healthz", s.handleHealthz)

	e.POST("/api/analyze-image", s.handleAnalyzeImage)
	e.GET("/api/batches/:id", s.handleGetBatch)
	e.POST("/api/batches/:id/toggle", s.handleToggle)
	e.PATCH("/api/batches/:id/items/:localId", s.handleEditItem)
	e.POST("/api/batches/:id/items", s.handleAddBlank)
	e.POST("/api/batches/:id/commit", s.handleCommit)
	e.DELETE("/api/batches/:id", s.handleDiscardBatch)

	e.POST("/api/add-food-items", s.handleAddFoodItems)
	e.POST("/api/kjoleskaps", s.handleCreateKjoleskap)
	e.GET("/api/kjoleskaps", s.handleListKjoleskaps)
	e.DELETE("/api/kjoleskaps/:id", s.handleDeleteKjoleskap)
	e.GET("/api/kjoleskaps/:id/items", s.handleListFoodItems)
	e.PATCH("/api/food-items/:id", s.handleUpdateFoodItem)
	e.DELETE("/api/food-items/:id", s.handleDeleteFoodItem)

	return e
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// userID reads the opaque authenticated-user identifier. Authentication
// itself happens upstream; an empty header is an unauthenticated request.
func userID(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get("X-User-ID"))
}

// --- Pipeline ---

type analyzeImageRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type analyzeImageResponse struct {
	BatchID string          `json:"batch_id"`
	Items   []CandidateItem `json:"items"`
}

func (s *Server) handleAnalyzeImage(c echo.Context) error {
	var req analyzeImageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if strings.TrimSpace(req.Image) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing image"))
	}

	img, err := ParseDataURI(req.Image, s.cfg.MaxImageBytes)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}

	batch := s.batches.Begin()

	raw, usage, err := ExtractFoodItems(c.Request().Context(), s.cfg, img, req.Prompt)
	if err != nil {
		s.batches.Discard(batch.ID)
		log.Printf("analyze-image batch=%s extraction failed: %v", batch.ID, err)
		return c.JSON(http.StatusInternalServerError, errorBody("Could not analyze image, please try again"))
	}

	items := NormalizeResponse(raw, s.cfg.Policy())
	ApplyGlossary(items, s.glossary)

	if !s.batches.CompleteAnalysis(batch.ID, items) {
		// The user discarded the batch while the call was outstanding.
		log.Printf("analyze-image batch=%s discarded before extraction returned, dropping %d candidates", batch.ID, len(items))
		return c.JSON(http.StatusGone, errorBody("Batch was discarded"))
	}

	log.Printf("analyze-image batch=%s candidates=%d tokens=%d", batch.ID, len(items), usage.TotalTokens())
	if items == nil {
		items = []CandidateItem{}
	}
	return c.JSON(http.StatusOK, analyzeImageResponse{BatchID: batch.ID, Items: items})
}

type batchStateResponse struct {
	BatchID string          `json:"batch_id"`
	Phase   string          `json:"phase"`
	Items   []CandidateItem `json:"items"`
}

func (s *Server) handleGetBatch(c echo.Context) error {
	batch, ok := s.batches.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Unknown batch"))
	}
	items := batch.Items()
	if items == nil {
		items = []CandidateItem{}
	}
	return c.JSON(http.StatusOK, batchStateResponse{BatchID: batch.ID, Phase: batch.Phase(), Items: items})
}

type toggleRequest struct {
	LocalID int64 `json:"local_id"`
}

func (s *Server) handleToggle(c echo.Context) error {
	batch, ok := s.batches.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Unknown batch"))
	}
	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if err := batch.Toggle(req.LocalID); err != nil {
		if errors.Is(err, errBatchBusy) {
			return c.JSON(http.StatusConflict, errorBody(err.Error()))
		}
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

type editItemRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEditItem(c echo.Context) error {
	batch, ok := s.batches.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Unknown batch"))
	}
	localID, err := strconv.ParseInt(c.Param("localId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid local id"))
	}
	var req editItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if err := batch.Edit(localID, req.Field, req.Value); err != nil {
		if errors.Is(err, errBatchBusy) {
			return c.JSON(http.StatusConflict, errorBody(err.Error()))
		}
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAddBlank(c echo.Context) error {
	batch, ok := s.batches.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Unknown batch"))
	}
	item, err := batch.AddBlank()
	if err != nil {
		if errors.Is(err, errBatchBusy) {
			return c.JSON(http.StatusConflict, errorBody(err.Error()))
		}
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	}
	return c.JSON(http.StatusCreated, item)
}

type commitRequest struct {
	KjoleskapID string `json:"kjoleskap_id"`
}

type commitResponse struct {
	Items []FoodItem `json:"items"`
}

func (s *Server) handleCommit(c echo.Context) error {
	batch, ok := s.batches.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Unknown batch"))
	}
	var req commitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if strings.TrimSpace(req.KjoleskapID) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing kjoleskap_id"))
	}

	records, err := batch.Commit(s.db, req.KjoleskapID, s.cfg.ExpiryWarnDays)
	if err != nil {
		switch {
		case errors.Is(err, ErrNothingSelected):
			return c.JSON(http.StatusConflict, errorBody("No items selected"))
		case errors.Is(err, errBatchBusy):
			return c.JSON(http.StatusConflict, errorBody(err.Error()))
		default:
			var commitErr *CommitError
			if errors.As(err, &commitErr) {
				log.Printf("commit batch=%s store rejected: %v", batch.ID, err)
				return c.JSON(http.StatusBadGateway, errorBody(err.Error()))
			}
			return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
		}
	}

	s.batches.Discard(batch.ID)
	log.Printf("commit batch=%s kjoleskap=%s inserted=%d", batch.ID, req.KjoleskapID, len(records))
	return c.JSON(http.StatusOK, commitResponse{Items: records})
}

func (s *Server) handleDiscardBatch(c echo.Context) error {
	if !s.batches.Discard(c.Param("id")) {
		return c.JSON(http.StatusNotFound, errorBody("Unknown batch"))
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Inventory ---

type addFoodItemsRequest struct {
	KjoleskapID string            `json:"kjoleskap_id"`
	Items       []foodItemPayload `json:"items"`
}

type foodItemPayload struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	ExpirationDate string  `json:"expiration_date"`
	ImageURL       string  `json:"image_url"`
}

// handleAddFoodItems is the direct batch add used by the manual-entry screen;
// it bypasses the review stage but applies the same field defaults.
func (s *Server) handleAddFoodItems(c echo.Context) error {
	var req addFoodItemsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if len(req.Items) == 0 || strings.TrimSpace(req.KjoleskapID) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid input"))
	}

	policy := s.cfg.Policy()
	records := make([]FoodItem, 0, len(req.Items))
	for _, payload := range req.Items {
		item := CandidateItem{
			Name:           strings.TrimSpace(payload.Name),
			Category:       strings.TrimSpace(payload.Category),
			Quantity:       payload.Quantity,
			Unit:           strings.TrimSpace(payload.Unit),
			ExpirationDate: validISODate(strings.TrimSpace(payload.ExpirationDate)),
		}
		applyDefaults(&item, policy)
		records = append(records, FoodItem{
			KjoleskapID:    req.KjoleskapID,
			Name:           item.Name,
			Category:       item.Category,
			Quantity:       item.Quantity,
			Unit:           item.Unit,
			ExpirationDate: item.ExpirationDate,
			Status:         ExpiryStatusAt(item.ExpirationDate, s.cfg.ExpiryWarnDays, time.Now()),
			ImageURL:       strings.TrimSpace(payload.ImageURL),
		})
	}

	inserted, err := InsertFoodItems(s.db, records)
	if err != nil {
		log.Printf("add-food-items kjoleskap=%s insert failed: %v", req.KjoleskapID, err)
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to add items"))
	}
	return c.JSON(http.StatusOK, commitResponse{Items: inserted})
}

type createKjoleskapRequest struct {
	Name      string `json:"name"`
	IsShared  bool   `json:"is_shared"`
	IsDefault bool   `json:"is_default"`
}

func (s *Server) handleCreateKjoleskap(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, errorBody("Missing user identity"))
	}
	var req createKjoleskapRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing name"))
	}

	k, err := CreateKjoleskap(s.db, strings.TrimSpace(req.Name), uid, req.IsShared, req.IsDefault)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to create kjoleskap"))
	}
	return c.JSON(http.StatusCreated, k)
}

func (s *Server) handleListKjoleskaps(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, errorBody("Missing user identity"))
	}
	kjoleskaps, err := GetKjoleskapsByUser(s.db, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to list kjoleskaps"))
	}
	if kjoleskaps == nil {
		kjoleskaps = []Kjoleskap{}
	}
	return c.JSON(http.StatusOK, kjoleskaps)
}

func (s *Server) handleDeleteKjoleskap(c echo.Context) error {
	uid := userID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, errorBody("Missing user identity"))
	}
	k, err := GetKjoleskapByID(s.db, c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, errorBody("Unknown kjoleskap"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to load kjoleskap"))
	}
	if k.UserID != uid {
		return c.JSON(http.StatusForbidden, errorBody("Not the owner"))
	}
	if err := DeleteKjoleskap(s.db, k.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to delete kjoleskap"))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListFoodItems(c echo.Context) error {
	items, err := GetFoodItemsByKjoleskap(s.db, c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to list items"))
	}
	if items == nil {
		items = []FoodItem{}
	}
	return c.JSON(http.StatusOK, items)
}

type updateFoodItemRequest struct {
	Name           *string  `json:"name"`
	Category       *string  `json:"category"`
	Quantity       *float64 `json:"quantity"`
	Unit           *string  `json:"unit"`
	ExpirationDate *string  `json:"expiration_date"`
	ImageURL       *string  `json:"image_url"`
}

func (s *Server) handleUpdateFoodItem(c echo.Context) error {
	item, err := GetFoodItemByID(s.db, c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		return c.JSON(http.StatusNotFound, errorBody("Unknown item"))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to load item"))
	}

	var req updateFoodItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid request body"))
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return c.JSON(http.StatusBadRequest, errorBody("Name must not be empty"))
		}
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
	}
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			return c.JSON(http.StatusBadRequest, errorBody("Quantity must be positive"))
		}
		item.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		item.Unit = strings.TrimSpace(*req.Unit)
	}
	if req.ExpirationDate != nil {
		value := strings.TrimSpace(*req.ExpirationDate)
		if value != "" && validISODate(value) == "" {
			return c.JSON(http.StatusBadRequest, errorBody("expiration_date must be an ISO date"))
		}
		item.ExpirationDate = value
		item.Status = ExpiryStatusAt(value, s.cfg.ExpiryWarnDays, time.Now())
	}
	if req.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	if err := UpdateFoodItem(s.db, item); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to update item"))
	}
	updated, err := GetFoodItemByID(s.db, item.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to reload item"))
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteFoodItem(c echo.Context) error {
	if err := DeleteFoodItemByID(s.db, c.Param("id")); err != nil {
		return c.JSON(http.StatusInternalServerError, errorBody("Failed to delete item"))
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHealthz(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":          "ok",
		"vision_provider": s.cfg.VisionProvider,
	})
}
