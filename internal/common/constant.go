package common

const (
	// DeviceIDHeaderName and APIKeyHeaderName carry device credentials on
	// upload requests.
	DeviceIDHeaderName = "X-Device-ID"
	APIKeyHeaderName   = "X-API-Key"

	// QRCodePrefix prefixes every account's scannable identifier.
	QRCodePrefix = "USER_"

	// DeviceKeyPrefix prefixes generated device API keys.
	DeviceKeyPrefix = "DEV_"
)
