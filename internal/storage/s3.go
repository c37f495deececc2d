package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pulsegrid/notify-backend/internal/models"
)

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func LoadS3ConfigFromEnv() (S3Config, error) {
	cfg := S3Config{
		Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		Region:    strings.TrimSpace(os.Getenv("S3_REGION")),
		Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
		AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
	}
	useSSL := strings.TrimSpace(os.Getenv("S3_USE_SSL"))
	if useSSL == "" {
		cfg.UseSSL = false
	} else {
		b, err := strconv.ParseBool(useSSL)
		if err != nil {
			return S3Config{}, fmt.Errorf("invalid S3_USE_SSL: %w", err)
		}
		cfg.UseSSL = b
	}

	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return S3Config{}, errors.New("missing required S3 env: S3_ENDPOINT, S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY")
	}
	// Region can be empty for MinIO.
	return cfg, nil
}

// ArchiveStorage writes expired notifications to object storage before the
// cleanup sweep deletes their rows, preserving audit history outside the
// hot database.
type ArchiveStorage struct {
	client *minio.Client
	bucket string
}

func NewArchiveStorage(cfg S3Config) (*ArchiveStorage, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &ArchiveStorage{client: cl, bucket: cfg.Bucket}, nil
}

// archivedNotification is the archive object layout. Delivery records ride
// along so the audit trail keeps who received and read what.
type archivedNotification struct {
	ID         string                   `json:"id"`
	Category   models.Category          `json:"category"`
	Priority   models.Priority          `json:"priority"`
	Type       models.NotificationType  `json:"type"`
	Title      string                   `json:"title"`
	Body       string                   `json:"body"`
	Data       map[string]interface{}   `json:"data,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	ExpiresAt  *time.Time               `json:"expires_at,omitempty"`
	ArchivedAt time.Time                `json:"archived_at"`
	Deliveries []archivedDeliveryRecord `json:"deliveries"`
}

type archivedDeliveryRecord struct {
	UserID           uint       `json:"user_id"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	ReadAt           *time.Time `json:"read_at"`
	Skipped          bool       `json:"skipped"`
	DeliveryAttempts int        `json:"delivery_attempts"`
}

// ArchiveNotification serializes one notification with its delivery records
// to a JSON object keyed by date and public id.
func (s *ArchiveStorage) ArchiveNotification(notification *models.Notification) error {
	archived := archivedNotification{
		ID:         notification.PublicID,
		Category:   notification.Category,
		Priority:   notification.Priority,
		Type:       notification.Type,
		Title:      notification.Title,
		Body:       notification.Body,
		Data:       notification.Data(),
		CreatedAt:  notification.CreatedAt,
		ExpiresAt:  notification.ExpiresAt,
		ArchivedAt: time.Now().UTC(),
	}
	for _, record := range notification.DeliveryRecords {
		archived.Deliveries = append(archived.Deliveries, archivedDeliveryRecord{
			UserID:           record.UserID,
			DeliveredAt:      record.DeliveredAt,
			ReadAt:           record.ReadAt,
			Skipped:          record.Skipped,
			DeliveryAttempts: record.DeliveryAttempts,
		})
	}

	body, err := json.Marshal(archived)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("notifications/%s/%s.json", notification.CreatedAt.UTC().Format("2006/01/02"), notification.PublicID)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
