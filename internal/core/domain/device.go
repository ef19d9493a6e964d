package domain

import (
	"time"

	"github.com/google/uuid"
)

// Device represents a physical or virtual telemetry source.
type Device struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	Type       string
	Protocol   DeviceProtocol
	Status     DeviceStatus
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSeenAt *time.Time
}

// DeviceProtocol is the ingestion protocol a device reports over.
type DeviceProtocol string

const (
	ProtocolMQTT  DeviceProtocol = "mqtt"
	ProtocolCoAP  DeviceProtocol = "coap"
	ProtocolAMQP  DeviceProtocol = "amqp"
	ProtocolOPCUA DeviceProtocol = "opcua"
)

// IsValid reports whether p is a recognized protocol tag.
func (p DeviceProtocol) IsValid() bool {
	switch p {
	case ProtocolMQTT, ProtocolCoAP, ProtocolAMQP, ProtocolOPCUA:
		return true
	default:
		return false
	}
}

// DeviceStatus is a derived, adapter-refreshed liveness signal.
type DeviceStatus string

const (
	DeviceStatusActive      DeviceStatus = "active"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusError       DeviceStatus = "error"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
)

// IsValid reports whether s is a recognized device status.
func (s DeviceStatus) IsValid() bool {
	switch s {
	case DeviceStatusActive, DeviceStatusOffline, DeviceStatusError, DeviceStatusMaintenance:
		return true
	default:
		return false
	}
}

// MarkSeen records a fresh liveness signal from a protocol adapter.
func (d *Device) MarkSeen(at time.Time, status DeviceStatus) {
	d.LastSeenAt = &at
	if status.IsValid() {
		d.Status = status
	}
}
