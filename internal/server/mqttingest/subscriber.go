// Package mqttingest accepts waste uploads published by devices over MQTT.
// Each upload runs the same ingestion path as the HTTP endpoint and is
// answered on the device's ack topic.
package mqttingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/smartwaste/internal/common"
	"github.com/dmitrijs2005/smartwaste/internal/logging"
	"github.com/dmitrijs2005/smartwaste/internal/server/models"
	"github.com/dmitrijs2005/smartwaste/internal/server/services"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicPrefix = "smartwaste/devices/"

	// UploadTopic matches every device's upload topic.
	UploadTopic = topicPrefix + "+/uploads"

	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	handleTimeout     = 15 * time.Second
	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 60 * time.Second
	maxReconnect      = 2 * time.Minute
)

var ErrConnectionFailed = errors.New("mqtt connection failed")

// Recorder stores an authorized upload.
type Recorder interface {
	RecordUpload(ctx context.Context, source string, req services.UploadRequest) (*models.WasteRecord, error)
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// uploadMessage is the JSON a device publishes.
type uploadMessage struct {
	APIKey     string  `json:"api_key"`
	UserQR     string  `json:"user_qr"`
	Organic    float64 `json:"organic"`
	Recyclable float64 `json:"recyclable"`
	Hazardous  float64 `json:"hazardous"`
}

// Ack is published back to the device after each upload.
type Ack struct {
	Status   string `json:"status"`
	RecordID string `json:"record_id,omitempty"`
	Reward   int64  `json:"reward,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Subscriber struct {
	client   pahomqtt.Client
	recorder Recorder
	qos      byte
	log      logging.Logger
	publish  func(topic string, payload []byte) error
}

func newSubscriber(rec Recorder, qos byte, log logging.Logger) *Subscriber {
	return &Subscriber{recorder: rec, qos: qos, log: log.With("module", "mqtt_ingest")}
}

// Connect dials the broker and subscribes to UploadTopic. The subscription
// is restored on every reconnect.
func Connect(opts Options, rec Recorder, log logging.Logger) (*Subscriber, error) {
	s := newSubscriber(rec, opts.QoS, log)

	co := pahomqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(keepAlive).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnect).
		SetOrderMatters(false)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetOnConnectHandler(func(c pahomqtt.Client) {
		token := c.Subscribe(UploadTopic, s.qos, s.onMessage)
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			s.log.Error(context.Background(), "subscribe failed", "topic", UploadTopic, "error", token.Error())
			return
		}
		s.log.Info(context.Background(), "subscribed", "topic", UploadTopic)
	})
	co.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.log.Warn(context.Background(), "connection lost", "error", err)
	})

	s.client = pahomqtt.NewClient(co)
	s.publish = s.clientPublish

	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return s, nil
}

// Run blocks until ctx is cancelled, then disconnects.
func (s *Subscriber) Run(ctx context.Context) error {
	<-ctx.Done()
	s.log.Info(ctx, "Stopping MQTT subscriber...")
	if s.client != nil {
		s.client.Disconnect(disconnectQuiesce)
	}
	return nil
}

func (s *Subscriber) clientPublish(topic string, payload []byte) error {
	token := s.client.Publish(topic, s.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func (s *Subscriber) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(context.Background(), "upload handler panic recovered", "topic", msg.Topic(), "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	deviceID, ok := DeviceIDFromTopic(msg.Topic())
	if !ok {
		s.log.Warn(ctx, "ignoring message on unexpected topic", "topic", msg.Topic())
		return
	}

	ack := s.handle(ctx, deviceID, msg.Payload())
	payload, err := json.Marshal(ack)
	if err != nil {
		s.log.Error(ctx, "encoding ack failed", "error", err)
		return
	}
	if err := s.publish(AckTopic(deviceID), payload); err != nil {
		s.log.Warn(ctx, "publishing ack failed", "device_id", deviceID, "error", err)
	}
}

func (s *Subscriber) handle(ctx context.Context, deviceID string, payload []byte) Ack {
	var m uploadMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return Ack{Status: "rejected", Error: fmt.Errorf("%w: malformed payload", common.ErrValidation).Error()}
	}

	rec, err := s.recorder.RecordUpload(ctx, services.SourceMQTT, services.UploadRequest{
		DeviceID: deviceID,
		APIKey:   m.APIKey,
		UserQR:   m.UserQR,
		Weights:  models.Weights{Organic: m.Organic, Recyclable: m.Recyclable, Hazardous: m.Hazardous},
	})
	if err != nil {
		if common.KindOf(err) == nil {
			return Ack{Status: "rejected", Error: "internal error"}
		}
		return Ack{Status: "rejected", Error: err.Error()}
	}
	return Ack{Status: "accepted", RecordID: rec.ID, Reward: rec.Reward}
}

// DeviceIDFromTopic extracts the device id from an upload topic.
func DeviceIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/uploads")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// AckTopic is where the ack for deviceID's uploads is published.
func AckTopic(deviceID string) string {
	return topicPrefix + deviceID + "/acks"
}
