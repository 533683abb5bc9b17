package servicebus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"insight-hub/infrastructure/logger"
)

// DegradationAlert is queued when a platform keeps failing past the
// consecutive-failure threshold.
type DegradationAlert struct {
	CompanyID           int64     `json:"company_id"`
	Platform            string    `json:"platform"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error"`
	OccurredAt          time.Time `json:"occurred_at"`
}

type IAlertSender interface {
	SendDegradation(ctx context.Context, alert DegradationAlert) error
}

// AlertSender pushes degradation alerts onto a Service Bus queue. A nil
// client disables alerting.
type AlertSender struct {
	client *azservicebus.Client
	queue  string
}

func NewAlertSender(client *azservicebus.Client, queue string) IAlertSender {
	return &AlertSender{client: client, queue: queue}
}

func (a *AlertSender) SendDegradation(ctx context.Context, alert DegradationAlert) error {
	if a.client == nil {
		return nil
	}

	sender, err := a.client.NewSender(a.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.Background())

	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	if err := sender.SendMessage(ctx, &azservicebus.Message{Body: body}, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}
