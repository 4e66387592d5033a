package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dwhitlockii/ebay-sold-scrapper-sub000/models"
)

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional: for DO Spaces, R2, etc.
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string // key prefix, e.g. "exports"
}

// SnapshotExporter publishes analytics snapshots as JSON objects so dashboards
// and downstream jobs can read them without database access.
type SnapshotExporter struct {
	client *s3.Client
	cfg    S3Config
}

func NewSnapshotExporter(ctx context.Context, cfg S3Config) (*SnapshotExporter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &SnapshotExporter{client: client, cfg: cfg}, nil
}

// ExportSnapshot writes the snapshot to two keys: a per-day history object and
// a "latest" object that is overwritten on every export.
func (e *SnapshotExporter) ExportSnapshot(ctx context.Context, snap *models.AnalyticsSnapshot) error {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	day := snap.ComputedAt.UTC().Format("2006-01-02")
	keys := []string{
		e.key(snap.Query, day+".json"),
		e.key(snap.Query, "latest.json"),
	}
	for _, key := range keys {
		if err := e.put(ctx, key, body); err != nil {
			return err
		}
	}
	return nil
}

// ExportAggregates writes the day-level series for a query as one JSON array.
func (e *SnapshotExporter) ExportAggregates(ctx context.Context, query string, aggs []models.DailyAggregate) error {
	body, err := json.MarshalIndent(aggs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal aggregates: %w", err)
	}
	return e.put(ctx, e.key(query, "daily.json"), body)
}

func (e *SnapshotExporter) put(ctx context.Context, key string, body []byte) error {
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// key builds "<prefix>/<query-slug>/<name>". Queries are user text, so they
// get slugified before becoming key segments.
func (e *SnapshotExporter) key(query, name string) string {
	parts := []string{querySlug(query), name}
	if e.cfg.Prefix != "" {
		parts = append([]string{strings.Trim(e.cfg.Prefix, "/")}, parts...)
	}
	return strings.Join(parts, "/")
}

func querySlug(query string) string {
	slug := strings.ToLower(strings.TrimSpace(query))
	slug = strings.Join(strings.Fields(slug), "-")
	return url.PathEscape(slug)
}

// PublicURL returns the public URL for an exported key.
func (e *SnapshotExporter) PublicURL(query string, day time.Time) string {
	key := e.key(query, day.UTC().Format("2006-01-02")+".json")
	if e.cfg.Endpoint != "" && strings.Contains(e.cfg.Endpoint, "digitaloceanspaces.com") {
		host := strings.TrimPrefix(e.cfg.Endpoint, "https://")
		return fmt.Sprintf("https://%s.%s/%s", e.cfg.Bucket, host, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", e.cfg.Bucket, e.cfg.Region, key)
}
