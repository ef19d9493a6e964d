// Package opcua implements a minimal, in-process OPC UA-shaped address
// space over a line-delimited JSON TCP protocol. It exposes the namespace
// structure spec'd for this platform (a Devices folder, one sub-folder per
// device with Properties and a Telemetry folder of Variables, and a
// SetStatus method) without implementing the real OPC UA binary protocol,
// for which no library exists anywhere in the retrieved corpus.
package opcua

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// DeviceNode mirrors one device's Properties and Telemetry Variables.
type DeviceNode struct {
	ID         uuid.UUID            `json:"id"`
	Type       string               `json:"type"`
	Protocol   string               `json:"protocol"`
	Status     string               `json:"status"`
	Telemetry  map[string]float64   `json:"telemetry"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// AddressSpace is the in-memory mirror browsed and read by OPC UA clients.
// A background sync task refreshes Telemetry values; SetStatus calls write
// through to the device repository rather than just the mirror.
type AddressSpace struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*DeviceNode
}

func NewAddressSpace() *AddressSpace {
	return &AddressSpace{devices: make(map[uuid.UUID]*DeviceNode)}
}

// Upsert registers or refreshes a device's Properties.
func (a *AddressSpace) Upsert(device *domain.Device) {
	a.mu.Lock()
	defer a.mu.Unlock()
	node, ok := a.devices[device.ID]
	if !ok {
		node = &DeviceNode{ID: device.ID, Telemetry: make(map[string]float64)}
		a.devices[device.ID] = node
	}
	node.Type = device.Type
	node.Protocol = string(device.Protocol)
	node.Status = string(device.Status)
	node.UpdatedAt = time.Now()
}

// SetTelemetry refreshes a single Telemetry Variable for a device.
func (a *AddressSpace) SetTelemetry(deviceID uuid.UUID, key string, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	node, ok := a.devices[deviceID]
	if !ok {
		node = &DeviceNode{ID: deviceID, Telemetry: make(map[string]float64)}
		a.devices[deviceID] = node
	}
	node.Telemetry[key] = value
	node.UpdatedAt = time.Now()
}

// SetStatus updates the mirrored status in place, independent of the
// repository write the caller is expected to also perform.
func (a *AddressSpace) SetStatus(deviceID uuid.UUID, status string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if node, ok := a.devices[deviceID]; ok {
		node.Status = status
		node.UpdatedAt = time.Now()
	}
}

// Browse lists every device folder under /Devices.
func (a *AddressSpace) Browse() []*DeviceNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*DeviceNode, 0, len(a.devices))
	for _, node := range a.devices {
		copied := *node
		out = append(out, &copied)
	}
	return out
}

// Read returns a single device's node, if known.
func (a *AddressSpace) Read(deviceID uuid.UUID) (*DeviceNode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	node, ok := a.devices[deviceID]
	if !ok {
		return nil, false
	}
	copied := *node
	return &copied, true
}
