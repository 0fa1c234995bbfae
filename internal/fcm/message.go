package fcm

import (
	"fmt"

	"notice-push/internal/models"

	fcmv1 "google.golang.org/api/fcm/v1"
)

const (
	summaryTitle    = "New shelter animals for you"
	summaryBodyTmpl = "%s newly listed animals match your interests. Tap to take a look."
)

// BuildSummaryMessage renders one user's summary for a single device token.
func BuildSummaryMessage(token, matchedCount, batchID string) *fcmv1.SendMessageRequest {
	return &fcmv1.SendMessageRequest{
		Message: &fcmv1.Message{
			Token: token,
			Notification: &fcmv1.Notification{
				Title: summaryTitle,
				Body:  fmt.Sprintf(summaryBodyTmpl, matchedCount),
			},
			Data: map[string]string{
				"campaign_type": models.CampaignNewAnimalSummary,
				"matched_count": matchedCount,
				"batch_id":      batchID,
			},
			Android: &fcmv1.AndroidConfig{
				Priority: "HIGH",
			},
		},
	}
}
