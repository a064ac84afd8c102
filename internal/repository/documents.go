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

const documentsCollection = "template_documents"

type DocumentsRepository struct {
	mongoRepo *MongoRepository
}

func NewDocumentsRepository(mongoRepo *MongoRepository) *DocumentsRepository {
	return &DocumentsRepository{
		mongoRepo: mongoRepo,
	}
}

// UpsertDocument inserts the document or replaces an earlier crawl of the
// same documentId.
func (r *DocumentsRepository) UpsertDocument(ctx context.Context, doc *models.Document) error {
	doc.CreatedAt = time.Now()

	filter := bson.M{"documentId": doc.DocumentID}
	opts := options.Replace().SetUpsert(true)
	err := r.mongoRepo.ReplaceOne(ctx, documentsCollection, filter, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

func (r *DocumentsRepository) GetDocumentByID(ctx context.Context, documentID string) (*models.Document, error) {
	filter := bson.M{"documentId": documentID}

	var doc models.Document
	err := r.mongoRepo.FindOne(ctx, documentsCollection, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	return &doc, nil
}

func (r *DocumentsRepository) GetDocumentsBySiteID(ctx context.Context, siteID string) ([]*models.Document, error) {
	filter := bson.M{"siteId": siteID}

	cursor, err := r.mongoRepo.FindMany(ctx, documentsCollection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	return docs, nil
}

func (r *DocumentsRepository) GetDocumentsByIDs(ctx context.Context, documentIDs []string) ([]*models.Document, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{"documentId": bson.M{"$in": documentIDs}}

	cursor, err := r.mongoRepo.FindMany(ctx, documentsCollection, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	return docs, nil
}

func (r *DocumentsRepository) CountDocumentsBySiteID(ctx context.Context, siteID string) (int64, error) {
	filter := bson.M{"siteId": siteID}

	count, err := r.mongoRepo.CountDocuments(ctx, documentsCollection, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return count, nil
}

func (r *DocumentsRepository) ExistsByURL(ctx context.Context, normalizedURL string) (bool, error) {
	filter := bson.M{"url": normalizedURL}

	count, err := r.mongoRepo.CountDocuments(ctx, documentsCollection, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check url: %w", err)
	}

	return count > 0, nil
}
