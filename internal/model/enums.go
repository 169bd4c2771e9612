package model

type DeviceStatus string

const (
	DeviceStatusUnpaired DeviceStatus = "UNPAIRED"
	DeviceStatusPaired   DeviceStatus = "PAIRED"
)
