package domain

// Driver is a directory entry used for assignment lists and notification fan-out.
type Driver struct {
	ID            string `db:"id"`
	FullName      string `db:"full_name"`
	Phone         string `db:"phone_number"`
	SMSEnabled    bool   `db:"sms_notifications_enabled"`
	ExpoPushToken string `db:"expo_push_token"`
	FCMToken      string `db:"fcm_token"`
}

// PushProvider identifies the gateway a push token belongs to.
type PushProvider string

const (
	PushProviderExpo PushProvider = "expo"
	PushProviderFCM  PushProvider = "fcm"
)

// PushTarget is a single device registration.
type PushTarget struct {
	DriverID string
	Token    string
	Provider PushProvider
}
