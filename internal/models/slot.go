package models

// Slot represents one addressable hardware measurement channel.
// The inventory is created at startup from static configuration and is
// immutable for the process lifetime.
type Slot struct {
	ID           string `json:"id"`                      // Stable caller-visible label, e.g. "slot01"
	Port         string `json:"port"`                    // Opaque hardware locator
	SerialNumber string `json:"serial_number,omitempty"` // Optional device serial
}

// SlotStatus is the reservation view of one slot returned by the API
type SlotStatus struct {
	Slot
	Reserved bool   `json:"reserved"`
	RunID    string `json:"run_id,omitempty"` // Occupying run when reserved
}
