package screening

import (
	"context"
	"fmt"
	"sort"

	"github.com/ananyasub/argus/internal/infra/redis"
	"github.com/ananyasub/argus/internal/models"
	"github.com/ananyasub/argus/internal/repository"
	"github.com/ananyasub/argus/internal/similarity"
	"github.com/rs/zerolog/log"
)

// Pair is one candidate document pair produced by the LSH filter
type Pair struct {
	DocA *models.Document
	DocB *models.Document
}

// PairScore carries the pipeline outcome for one pair
type PairScore struct {
	DocA   *models.Document
	DocB   *models.Document
	Result *PipelineResult
}

// ComparisonJob represents a job for the worker pool
type ComparisonJob struct {
	Pair       Pair
	Thresholds similarity.Thresholds
	MinScore   float64
	ResultChan chan<- PairScore
	DoneChan   chan<- struct{}
}

// Execute runs the comparison pipeline for the pair
func (j *ComparisonJob) Execute(ctx context.Context) error {
	defer func() {
		// Signal completion
		select {
		case j.DoneChan <- struct{}{}:
		default:
		}
	}()

	result, err := ComparePair(j.Pair.DocA, j.Pair.DocB, j.Thresholds, j.MinScore)
	if err != nil {
		return fmt.Errorf("failed to compare %s/%s: %w", j.Pair.DocA.DocumentID, j.Pair.DocB.DocumentID, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case j.ResultChan <- PairScore{DocA: j.Pair.DocA, DocB: j.Pair.DocB, Result: result}:
		return nil
	}
}

// Screener runs full-site scans
type Screener struct {
	docsRepo    *repository.DocumentsRepository
	resultsRepo *repository.ResultsRepository
	redisClient *redis.Client
	workerPool  *WorkerPool
	thresholds  similarity.Thresholds
	minScore    float64
	batchSize   int
}

func NewScreener(
	docsRepo *repository.DocumentsRepository,
	resultsRepo *repository.ResultsRepository,
	redisClient *redis.Client,
	workerPool *WorkerPool,
	thresholds similarity.Thresholds,
	minScore float64,
	batchSize int,
) *Screener {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Screener{
		docsRepo:    docsRepo,
		resultsRepo: resultsRepo,
		redisClient: redisClient,
		workerPool:  workerPool,
		thresholds:  thresholds,
		minScore:    minScore,
		batchSize:   batchSize,
	}
}

// ComputeScreening screens every indexed document of a site against every
// LSH candidate pair and writes pair results plus one scan report.
func (s *Screener) ComputeScreening(ctx context.Context, scanID, siteID string) error {
	if err := UpdateStatus(ctx, s.redisClient, scanID, models.StepStarted); err != nil {
		return err
	}

	docs, err := s.docsRepo.GetDocumentsBySiteID(ctx, siteID)
	if err != nil {
		log.Error().Err(err).Str("siteId", siteID).Msg("Failed to load documents")
		return fmt.Errorf("failed to load documents: %w", err)
	}

	// Edge Case: Unknown site
	if len(docs) == 0 {
		return fmt.Errorf("no documents found for siteId: %s", siteID)
	}

	// Edge Case: Single document, nothing to compare
	if len(docs) == 1 {
		return s.handleCleanScan(ctx, scanID, siteID, len(docs), 0)
	}

	if err := UpdateStatus(ctx, s.redisClient, scanID, models.StepFiltering); err != nil {
		return err
	}

	pairs := candidatePairs(docs)

	// Edge Case: No band collisions, every document is distinct
	if len(pairs) == 0 {
		log.Info().Str("siteId", siteID).Msg("No candidate pairs found")
		return s.handleCleanScan(ctx, scanID, siteID, len(docs), 0)
	}

	if err := UpdateStatus(ctx, s.redisClient, scanID, models.StepComparing); err != nil {
		return err
	}

	scores := s.comparePairs(ctx, pairs)

	return s.aggregate(ctx, scanID, siteID, len(docs), len(pairs), scores)
}

// candidatePairs buckets documents by (band, hash) and pairs up every two
// documents sharing a bucket. Pairs that collide in several bands appear
// once.
func candidatePairs(docs []*models.Document) []Pair {
	buckets := make(map[string][]*models.Document)
	for _, doc := range docs {
		for band, hash := range doc.BandHashes {
			key := fmt.Sprintf("%d:%d", band, hash)
			buckets[key] = append(buckets[key], doc)
		}
	}

	seen := make(map[string]bool)
	pairs := make([]Pair, 0)
	for _, bucket := range buckets {
		if len(bucket) < 2 {
			continue
		}
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if a.DocumentID == b.DocumentID {
					continue
				}
				key := pairKey(a.DocumentID, b.DocumentID)
				if seen[key] {
					continue
				}
				seen[key] = true
				pairs = append(pairs, Pair{DocA: a, DocB: b})
			}
		}
	}

	return pairs
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// comparePairs fans the pairs out to the worker pool and collects results
// as jobs complete.
func (s *Screener) comparePairs(ctx context.Context, pairs []Pair) []PairScore {
	resultChan := make(chan PairScore, len(pairs))
	doneChan := make(chan struct{}, len(pairs))

	submitted := 0
	for _, pair := range pairs {
		job := &ComparisonJob{
			Pair:       pair,
			Thresholds: s.thresholds,
			MinScore:   s.minScore,
			ResultChan: resultChan,
			DoneChan:   doneChan,
		}

		if err := s.workerPool.Submit(job); err != nil {
			log.Error().Err(err).Msg("Failed to submit job")
			continue
		}
		submitted++
	}

	scores := make([]PairScore, 0, submitted)
	completed := 0

	for completed < submitted {
		select {
		case <-ctx.Done():
			// Return what we have so far
			return scores
		case score := <-resultChan:
			scores = append(scores, score)
		case <-doneChan:
			completed++
		}
	}

	// Drain results delivered between the final done signal and now
	for {
		select {
		case score := <-resultChan:
			scores = append(scores, score)
		default:
			return scores
		}
	}
}

// handleCleanScan writes a clean report for scans with nothing to compare
func (s *Screener) handleCleanScan(ctx context.Context, scanID, siteID string, totalDocs, candidates int) error {
	report := &models.ScanReport{
		ScanID:           scanID,
		SiteID:           siteID,
		Risk:             "clean",
		Status:           "completed",
		TotalDocuments:   totalDocs,
		CandidatePairs:   candidates,
		FlaggedDocuments: []string{},
	}

	if err := s.resultsRepo.InsertScanReport(ctx, report); err != nil {
		return fmt.Errorf("failed to insert scan report: %w", err)
	}

	if err := UpdateStatus(ctx, s.redisClient, scanID, models.StepCompleted); err != nil {
		return err
	}

	log.Debug().
		Str("scanId", scanID).
		Str("siteId", siteID).
		Int("documents", totalDocs).
		Msg("Handled clean scan case")

	return nil
}

// aggregate persists significant pair results and the scan report
func (s *Screener) aggregate(ctx context.Context, scanID, siteID string, totalDocs, candidates int, scores []PairScore) error {
	flagged := make([]PairScore, 0)
	for _, score := range scores {
		if score.Result.FinalScore >= s.minScore && !score.Result.ShortCircuited {
			flagged = append(flagged, score)
		}
	}

	// Edge Case: Every pair fell below the reporting threshold
	if len(flagged) == 0 {
		return s.handleCleanScan(ctx, scanID, siteID, totalDocs, candidates)
	}

	sort.Slice(flagged, func(i, j int) bool {
		return flagged[i].Result.FinalScore > flagged[j].Result.FinalScore
	})

	highest := flagged[0].Result.FinalScore
	flaggedDocs := make(map[string]bool)

	pairResults := make([]*models.PairResult, 0, len(flagged))
	for _, score := range flagged {
		flaggedDocs[score.DocA.DocumentID] = true
		flaggedDocs[score.DocB.DocumentID] = true

		pairResults = append(pairResults, &models.PairResult{
			ScanID:        scanID,
			SiteID:        siteID,
			DocumentA:     score.DocA.DocumentID,
			DocumentB:     score.DocB.DocumentID,
			URLA:          score.DocA.URL,
			URLB:          score.DocB.URL,
			CSSJaccard:    score.Result.CSSEstimate.Jaccard,
			HTMLJaccard:   score.Result.HTMLEstimate.Jaccard,
			Confidence:    score.Result.CSSEstimate.Confidence,
			CSSComparison: score.Result.CSSComparison,
			CombinedScore: score.Result.FinalScore,
			Verdict:       score.Result.Verdict,
		})
	}

	for start := 0; start < len(pairResults); start += s.batchSize {
		end := min(start+s.batchSize, len(pairResults))
		if err := s.resultsRepo.InsertPairResults(ctx, pairResults[start:end]); err != nil {
			return fmt.Errorf("failed to insert pair results: %w", err)
		}
	}

	flaggedList := make([]string, 0, len(flaggedDocs))
	for id := range flaggedDocs {
		flaggedList = append(flaggedList, id)
	}
	sort.Strings(flaggedList)

	report := &models.ScanReport{
		ScanID:           scanID,
		SiteID:           siteID,
		Risk:             riskLevel(highest, len(flaggedDocs), totalDocs),
		Status:           "completed",
		TotalDocuments:   totalDocs,
		CandidatePairs:   candidates,
		ComparedPairs:    len(scores),
		FlaggedPairs:     len(flagged),
		HighestScore:     highest,
		FlaggedDocuments: flaggedList,
	}

	if err := s.resultsRepo.InsertScanReport(ctx, report); err != nil {
		return fmt.Errorf("failed to insert scan report: %w", err)
	}

	if err := UpdateStatus(ctx, s.redisClient, scanID, models.StepCompleted); err != nil {
		return err
	}

	log.Info().
		Str("scanId", scanID).
		Str("siteId", siteID).
		Int("candidates", candidates).
		Int("flagged", len(flagged)).
		Float64("highest", highest).
		Str("risk", report.Risk).
		Msg("Screening completed successfully")

	return nil
}

// riskLevel grades a scan from its strongest pair and the share of
// documents implicated.
func riskLevel(highest float64, flaggedDocs, totalDocs int) string {
	share := float64(flaggedDocs) / float64(totalDocs)

	switch {
	case highest >= 0.7 && share >= 0.5:
		return "critical"
	case highest >= 0.5:
		return "high"
	case highest >= 0.25:
		return "moderate"
	default:
		return "clean"
	}
}
