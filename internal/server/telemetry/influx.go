// Package telemetry ships accepted waste uploads to InfluxDB as time series
// points. Writes are batched and never block the upload path.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	measurement    = "waste_upload"
	connectTimeout = 10 * time.Second
)

// Sink receives accepted uploads.
type Sink interface {
	RecordUpload(rec *models.WasteRecord)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordUpload(*models.WasteRecord) {}

type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxSink writes one point per upload.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
}

// Connect pings the server and sets up a non-blocking write API. Async write
// errors are logged.
func Connect(ctx context.Context, url, token, org, bucket string, log logging.Logger) (*InfluxSink, error) {
	client := influxdb2.NewClientWithOptions(url, token, influxdb2.DefaultOptions().SetBatchSize(100))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	healthy, err := client.Ping(pingCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: server not healthy")
	}

	writeAPI := client.WriteAPI(org, bucket)
	log = log.With("module", "telemetry")
	go func() {
		for err := range writeAPI.Errors() {
			log.Warn(context.Background(), "influxdb write failed", "error", err)
		}
	}()

	return &InfluxSink{client: client, writer: writeAPI}, nil
}

func newInfluxSink(w pointWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

func (s *InfluxSink) RecordUpload(rec *models.WasteRecord) {
	s.writer.WritePoint(uploadPoint(rec))
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
}

func uploadPoint(rec *models.WasteRecord) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{
			"device_id": rec.DeviceID,
		},
		map[string]interface{}{
			"organic":    rec.Weights.Organic,
			"recyclable": rec.Weights.Recyclable,
			"hazardous":  rec.Weights.Hazardous,
			"reward":     rec.Reward,
			"account_id": rec.AccountID,
		},
		rec.CreatedAt,
	)
}
