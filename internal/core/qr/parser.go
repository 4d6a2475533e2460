// Package qr handles QR label decoding and payload parsing.
package qr

import "strings"

// Payload is the structured content of a shipment QR label. Labels encode
// comma-separated values: qr_code,imei,device_name,capacity. The format is
// forgiving: missing trailing fields stay empty and extra fields are ignored.
type Payload struct {
	QRCode     string `json:"qr_code"`
	IMEI       string `json:"imei"`
	DeviceName string `json:"device_name"`
	Capacity   string `json:"capacity"`
}

// ParsePayload splits a raw QR string into its fields. It returns false for
// an empty string.
func ParsePayload(raw string) (Payload, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, false
	}

	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}

	return Payload{
		QRCode:     parts[0],
		IMEI:       parts[1],
		DeviceName: parts[2],
		Capacity:   parts[3],
	}, true
}
