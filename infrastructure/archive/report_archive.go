package archive

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"insight-hub/domain/model"
	"insight-hub/infrastructure/logger"
)

const (
	databaseName   = "insight_hub"
	collectionName = "raw_reports"
)

type IReportArchive interface {
	Store(ctx context.Context, companyID int64, platform model.Platform, rangeStart, rangeEnd string, metrics *model.PlatformMetrics)
}

// ReportArchive keeps the raw per-platform fetch results in Mongo for audits
// and replay. Archiving is best effort and never fails a fetch; a nil client
// disables it entirely.
type ReportArchive struct {
	client *mongo.Client
}

func NewReportArchive(client *mongo.Client) IReportArchive {
	return &ReportArchive{client: client}
}

func (a *ReportArchive) Store(ctx context.Context, companyID int64, platform model.Platform, rangeStart, rangeEnd string, metrics *model.PlatformMetrics) {
	if a.client == nil || metrics == nil {
		return
	}

	raw, err := json.Marshal(metrics)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while encoding raw report")
		return
	}

	doc := bson.D{
		{Key: "company_id", Value: companyID},
		{Key: "platform", Value: string(platform)},
		{Key: "range_start", Value: rangeStart},
		{Key: "range_end", Value: rangeEnd},
		{Key: "payload", Value: string(raw)},
		{Key: "archived_at", Value: time.Now().UTC()},
	}

	collection := a.client.Database(databaseName).Collection(collectionName)
	if _, err := collection.InsertOne(ctx, doc); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while archiving raw report")
	}
}
