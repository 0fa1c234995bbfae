// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSPublisher is the subset of the SNS client used for alerts.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// RunAlert summarizes a dispatch run that needs operator attention.
type RunAlert struct {
	BatchID       string `json:"batch_id"`
	Operation     string `json:"operation"`
	Fatal         int    `json:"fatal"`
	Retryable     int    `json:"retryable"`
	InvalidTokens int    `json:"invalid_tokens"`
	Sent          int    `json:"sent"`
	// Failures counts provider errors by their details, e.g.
	// "category: fatal, status: 403".
	Failures map[string]int `json:"failures,omitempty"`
}

// AlertPublisher sends run alerts to a single SNS topic.
type AlertPublisher struct {
	client   SNSPublisher
	topicARN string
}

func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return sns.NewFromConfig(cfg), nil
}

func NewAlertPublisher(client SNSPublisher, topicARN string) *AlertPublisher {
	return &AlertPublisher{client: client, topicARN: topicARN}
}

// Publish sends the alert as a JSON message. Only counts and the batch id are
// included, never tokens.
func (p *AlertPublisher) Publish(ctx context.Context, alert RunAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(fmt.Sprintf("notice-push %s: %d fatal deliveries", alert.Operation, alert.Fatal)),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
