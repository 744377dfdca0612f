package activation

import (
	"winsbygroup.com/keyverify/internal/binding"
	"winsbygroup.com/keyverify/internal/license"
	"winsbygroup.com/keyverify/internal/machine"
)

// Config is the per-product part of the service configuration.
type Config struct {
	ProductID            int64
	Floating             bool
	AllowOverdraft       bool
	FloatingTimeInterval int // seconds
	MaxOverdraft         int
	MachineCodeVersion   machine.Version
	Metadata             bool
}

// Mode returns the binding rules for this configuration.
func (c Config) Mode() binding.Mode {
	return binding.Mode{Floating: c.Floating, AllowOverdraft: c.AllowOverdraft}
}

// Request activates Key on a machine. An empty MachineCode means this device.
type Request struct {
	Key          string `json:"key"`
	MachineCode  string `json:"machineCode"`
	FriendlyName string `json:"friendlyName"`
}

// Verification is a license checked for this device.
type Verification struct {
	License  *license.LicenseKey `json:"license"`
	Decision binding.Decision    `json:"decision"`
	Offline  bool                `json:"offline"`
}
