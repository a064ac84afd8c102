package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ananyasub/argus/internal/config"
	"github.com/ananyasub/argus/internal/infra/redis"
	"github.com/ananyasub/argus/internal/models"
	"github.com/ananyasub/argus/internal/repository"
	"github.com/ananyasub/argus/internal/screening"
	"github.com/ananyasub/argus/internal/similarity"
	"github.com/ananyasub/argus/internal/sketch"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler holds dependencies for handlers
type Handler struct {
	cfg         *config.Config
	docsRepo    *repository.DocumentsRepository
	resultsRepo *repository.ResultsRepository
	screener    *screening.Screener
	bandIndex   *screening.BandIndex
	sketches    *sketch.Manager
	redisClient *redis.Client
	scanSem     chan struct{} // Semaphore for bounded concurrency
	scanTimeout time.Duration
}

// NewHandler creates a new handler
func NewHandler(
	cfg *config.Config,
	docsRepo *repository.DocumentsRepository,
	resultsRepo *repository.ResultsRepository,
	screener *screening.Screener,
	bandIndex *screening.BandIndex,
	sketches *sketch.Manager,
	redisClient *redis.Client,
) *Handler {
	return &Handler{
		cfg:         cfg,
		docsRepo:    docsRepo,
		resultsRepo: resultsRepo,
		screener:    screener,
		bandIndex:   bandIndex,
		sketches:    sketches,
		redisClient: redisClient,
		scanSem:     make(chan struct{}, cfg.MaxConcurrentScans),
		scanTimeout: cfg.ScreeningTimeout,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// Scan triggers a site screening and returns 202 immediately
func (h *Handler) Scan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := validateScanPayload(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_SITE_ID",
		})
		return
	}

	// Edge Case: Unknown site
	ctx := c.Request.Context()
	count, err := h.docsRepo.CountDocumentsBySiteID(ctx, req.SiteID)
	if err != nil {
		log.Error().Err(err).Str("siteId", req.SiteID).Msg("Failed to check documents")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to check documents",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	if count == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "No documents found for siteId",
			Code:  "SITE_ID_NOT_FOUND",
		})
		return
	}

	// Acquire semaphore (bounded concurrency)
	select {
	case h.scanSem <- struct{}{}:
		// Acquired semaphore
	case <-ctx.Done():
		c.JSON(http.StatusRequestTimeout, models.ErrorResponse{
			Error: "Request cancelled",
			Code:  "REQUEST_TIMEOUT",
		})
		return
	}

	scanID := uuid.NewString()

	if err := screening.UpdateStatus(ctx, h.redisClient, scanID, models.StepInitiated); err != nil {
		log.Warn().Err(err).Str("scanId", scanID).Msg("Failed to update initiated status")
	}

	// Return 202 Accepted immediately
	c.JSON(http.StatusAccepted, models.ScanResponse{
		Step:   models.StepInitiated,
		ScanID: scanID,
	})

	// Process asynchronously
	go h.processScan(scanID, req.SiteID)
}

// processScan runs the screening asynchronously
func (h *Handler) processScan(scanID, siteID string) {
	defer func() { <-h.scanSem }() // Release semaphore

	ctx, cancel := context.WithTimeout(context.Background(), h.scanTimeout)
	defer cancel()

	if err := h.screener.ComputeScreening(ctx, scanID, siteID); err != nil {
		log.Error().Err(err).Str("scanId", scanID).Str("siteId", siteID).Msg("Screening failed")
		h.recordFailedScan(ctx, scanID, siteID)
		return
	}

	log.Debug().Str("scanId", scanID).Msg("Screening completed successfully")
}

func (h *Handler) recordFailedScan(ctx context.Context, scanID, siteID string) {
	report := &models.ScanReport{
		ScanID:           scanID,
		SiteID:           siteID,
		Status:           "failed",
		FlaggedDocuments: []string{},
	}
	if err := h.resultsRepo.InsertScanReport(ctx, report); err != nil {
		log.Error().Err(err).Str("scanId", scanID).Msg("Failed to insert failed report")
	}
	if err := screening.UpdateStatus(ctx, h.redisClient, scanID, models.StepFailed); err != nil {
		log.Warn().Err(err).Str("scanId", scanID).Msg("Failed to update failed status")
	}
}

// Report returns the scan report with its pair results
func (h *Handler) Report(c *gin.Context) {
	scanID := c.Param("id")
	ctx := c.Request.Context()

	report, err := h.resultsRepo.GetReportByScanID(ctx, scanID)
	if err != nil {
		log.Error().Err(err).Str("scanId", scanID).Msg("Failed to get report")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to get report",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	if report == nil {
		step, err := screening.GetStatus(ctx, h.redisClient, scanID)
		if err != nil {
			log.Warn().Err(err).Str("scanId", scanID).Msg("Failed to read scan status")
		}
		if step == models.StepIdle {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "Scan not found",
				Code:  "SCAN_NOT_FOUND",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"scanId": scanID, "step": step})
		return
	}

	pairs, err := h.resultsRepo.GetPairResultsByScanID(ctx, scanID)
	if err != nil {
		log.Error().Err(err).Str("scanId", scanID).Msg("Failed to get pair results")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to get pair results",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report": report,
		"pairs":  pairs,
	})
}

// Similar returns the indexed documents likely similar to the given one,
// by LSH candidate lookup followed by signature agreement.
func (h *Handler) Similar(c *gin.Context) {
	documentID := c.Param("id")
	ctx := c.Request.Context()

	doc, err := h.docsRepo.GetDocumentByID(ctx, documentID)
	if err != nil {
		log.Error().Err(err).Str("documentId", documentID).Msg("Failed to get document")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to get document",
			Code:  "INTERNAL_ERROR",
		})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Document not found",
			Code:  "DOCUMENT_NOT_FOUND",
		})
		return
	}

	candidateIDs, err := h.bandIndex.Candidates(ctx, documentID, doc.BandHashes)
	if err != nil {
		log.Error().Err(err).Str("documentId", documentID).Msg("Failed to get candidates")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to look up candidates",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	candidates, err := h.docsRepo.GetDocumentsByIDs(ctx, candidateIDs)
	if err != nil {
		log.Error().Err(err).Str("documentId", documentID).Msg("Failed to load candidates")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to load candidates",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	similar := make([]models.SimilarDocument, 0, len(candidates))
	for _, candidate := range candidates {
		est, err := similarity.EstimateSimilarity(doc.CombinedSig, candidate.CombinedSig)
		if err != nil {
			log.Warn().Err(err).
				Str("documentId", documentID).
				Str("candidateId", candidate.DocumentID).
				Msg("Skipping incomparable candidate")
			continue
		}
		similar = append(similar, models.SimilarDocument{
			DocumentID: candidate.DocumentID,
			URL:        candidate.URL,
			Jaccard:    est.Jaccard,
			Confidence: est.Confidence,
		})
	}

	sort.Slice(similar, func(i, j int) bool {
		return similar[i].Jaccard > similar[j].Jaccard
	})

	c.JSON(http.StatusOK, gin.H{
		"documentId": documentID,
		"similar":    similar,
	})
}

// Stats returns the live sketch statistics
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sketches.Snapshot())
}

func validateScanPayload(req models.ScanRequest) error {
	if req.SiteID == "" {
		return fmt.Errorf("siteId is required")
	}

	return nil
}
