// Package notify contains the outbound SMS and push gateways.
package notify

import "fmt"

// PushMessage is a single device notification.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

const newJobPushTitle = "New MinuteRide job available"

// NewJobSMS renders the text sent to drivers when a job is posted.
// Missing locations render as N/A.
func NewJobSMS(pickup, dropoff string) string {
	return fmt.Sprintf("🚗 New MinuteRide job:\nPickup: %s\nDropoff: %s\nLog in now to claim it.",
		orDefault(pickup, "N/A"), orDefault(dropoff, "N/A"))
}

// NewJobPush builds the push notification for a posted job.
func NewJobPush(token, jobID, pickup, dropoff string) PushMessage {
	return PushMessage{
		Token: token,
		Title: newJobPushTitle,
		Body:  fmt.Sprintf("%s → %s", orDefault(pickup, "Pickup unknown"), orDefault(dropoff, "Dropoff unknown")),
		Data:  map[string]string{"jobId": jobID},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
