package screening

import (
	"context"
	"fmt"
	"strings"

	"github.com/ananyasub/argus/internal/models"
	"github.com/ananyasub/argus/internal/repository"
	"github.com/ananyasub/argus/internal/similarity"
	"github.com/ananyasub/argus/internal/sketch"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Ingestor turns a crawled template into an indexed document: signatures
// computed, LSH band buckets registered, sketches updated, document stored.
type Ingestor struct {
	hasher      *similarity.MinHasher
	bander      *similarity.Bander
	shingleSize int
	sketches    *sketch.Manager
	docsRepo    *repository.DocumentsRepository
	index       *BandIndex
}

func NewIngestor(
	hasher *similarity.MinHasher,
	bander *similarity.Bander,
	shingleSize int,
	sketches *sketch.Manager,
	docsRepo *repository.DocumentsRepository,
	index *BandIndex,
) *Ingestor {
	return &Ingestor{
		hasher:      hasher,
		bander:      bander,
		shingleSize: shingleSize,
		sketches:    sketches,
		docsRepo:    docsRepo,
		index:       index,
	}
}

// Ingest processes one submission. Re-crawls of an already indexed URL are
// skipped: the Bloom filter answers "definitely new" for free, and only its
// maybe answers pay for the definitive document-store lookup.
func (ing *Ingestor) Ingest(ctx context.Context, sub *models.TemplateSubmission) error {
	if sub.URL == "" {
		return fmt.Errorf("submission has no url")
	}

	normalizedURL := sketch.NormalizeURL(sub.URL)

	if ing.sketches.MaybeIndexed(sub.URL) {
		exists, err := ing.docsRepo.ExistsByURL(ctx, normalizedURL)
		if err != nil {
			return fmt.Errorf("failed to confirm url: %w", err)
		}
		if exists {
			log.Debug().Str("url", normalizedURL).Msg("URL already indexed, skipping")
			return nil
		}
	}

	documentID := sub.DocumentID
	if documentID == "" {
		documentID = uuid.NewString()
	}

	cssSig := ing.hasher.ComputeCSS(sub.CSS, ing.shingleSize)
	htmlSig := ing.hasher.ComputeHTML(sub.HTML, ing.shingleSize)
	combinedSig := ing.hasher.ComputeCombined(sub.HTML, sub.CSS, ing.shingleSize)

	bandHashes, err := ing.bander.BandHashes(combinedSig)
	if err != nil {
		return fmt.Errorf("failed to band signature: %w", err)
	}

	doc := &models.Document{
		DocumentID:   documentID,
		SiteID:       sub.SiteID,
		URL:          normalizedURL,
		TemplateID:   sub.TemplateID,
		HTML:         sub.HTML,
		CSS:          sub.CSS,
		CSSSignature: cssSig,
		HTMLSig:      htmlSig,
		CombinedSig:  combinedSig,
		BandHashes:   bandHashes,
	}

	if err := ing.docsRepo.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	if err := ing.index.Add(ctx, documentID, bandHashes); err != nil {
		return err
	}

	ing.trackSketches(sub)

	log.Info().
		Str("documentId", documentID).
		Str("siteId", sub.SiteID).
		Str("url", normalizedURL).
		Int("cssShingles", cssSig.NumShingles).
		Int("htmlShingles", htmlSig.NumShingles).
		Msg("Document ingested")

	return nil
}

// trackSketches feeds the cardinality sketches. Sketch updates are advisory
// stats, never a reason to fail an ingest.
func (ing *Ingestor) trackSketches(sub *models.TemplateSubmission) {
	ing.sketches.MarkIndexed(sub.URL)

	if sub.TemplateID != "" {
		ing.sketches.TrackTemplate(sub.TemplateID)
	}

	for _, token := range similarity.CSSTokens(sub.CSS) {
		if color, ok := strings.CutPrefix(token, "color:"); ok {
			ing.sketches.TrackColor(color)
		}
	}

	for _, fp := range similarity.ExtractPropertyFingerprints(sub.CSS) {
		ing.sketches.TrackPattern(fp)
	}
}
