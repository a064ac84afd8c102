package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ananyasub/argus/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	pairResultsCollection = "pair_results"
	reportsCollection     = "scan_reports"
)

type ResultsRepository struct {
	mongoRepo *MongoRepository
}

func NewResultsRepository(mongoRepo *MongoRepository) *ResultsRepository {
	return &ResultsRepository{
		mongoRepo: mongoRepo,
	}
}

func (r *ResultsRepository) InsertPairResults(ctx context.Context, results []*models.PairResult) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(results))
	for _, result := range results {
		result.CreatedAt = now
		docs = append(docs, result)
	}

	err := r.mongoRepo.InsertMany(ctx, pairResultsCollection, docs)
	if err != nil {
		return fmt.Errorf("failed to insert pair results: %w", err)
	}

	return nil
}

func (r *ResultsRepository) InsertScanReport(ctx context.Context, report *models.ScanReport) error {
	report.CreatedAt = time.Now()

	err := r.mongoRepo.InsertOne(ctx, reportsCollection, report)
	if err != nil {
		return fmt.Errorf("failed to insert scan report: %w", err)
	}

	return nil
}

func (r *ResultsRepository) GetReportByScanID(ctx context.Context, scanID string) (*models.ScanReport, error) {
	filter := bson.M{"scanId": scanID}

	var report models.ScanReport
	err := r.mongoRepo.FindOne(ctx, reportsCollection, filter).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	return &report, nil
}

func (r *ResultsRepository) GetLatestReportBySiteID(ctx context.Context, siteID string) (*models.ScanReport, error) {
	filter := bson.M{"siteId": siteID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var report models.ScanReport
	err := r.mongoRepo.FindOne(ctx, reportsCollection, filter, opts).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}

	return &report, nil
}

func (r *ResultsRepository) GetPairResultsByScanID(ctx context.Context, scanID string) ([]*models.PairResult, error) {
	filter := bson.M{"scanId": scanID}
	opts := options.Find().SetSort(bson.D{{Key: "combinedScore", Value: -1}})

	cursor, err := r.mongoRepo.FindMany(ctx, pairResultsCollection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pair results: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*models.PairResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode pair results: %w", err)
	}

	return results, nil
}
