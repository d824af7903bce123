package usb

import (
	"os/exec"
	"strconv"

	"github.com/google/gousb"
)

type DeviceType int

const (
	Unknown DeviceType = iota
	// USRP radios the capture tool can drive
	USRPB200
	USRPB210
	// A B2xx that has not loaded its firmware yet shows up as a bare FX3
	USRPB2xxUninitialized
)

var (
	SupportedDevices = DeviceMap{
		USRPB200: {
			VendorID:  0x2500,
			ProductID: 0x0020,
			Name:      "Ettus USRP B200",
			ResetCMD:  exec.Command("b2xx_fx3_utils", "--reset-device"),
		},
		USRPB210: {
			VendorID:  0x2500,
			ProductID: 0x0021,
			Name:      "Ettus USRP B210",
			ResetCMD:  exec.Command("b2xx_fx3_utils", "--reset-device"),
		},
		USRPB2xxUninitialized: {
			VendorID:  0x04b4,
			ProductID: 0x00f3,
			Name:      "Cypress FX3 (USRP B2xx without firmware)",
		},
	}
)

type Device struct {
	ResetCMD  *exec.Cmd
	Name      string
	VendorID  gousb.ID
	ProductID gousb.ID
}

type DeviceMap map[DeviceType]*Device

type DeviceTuple struct {
	*Device
	DeviceType
}

func FindSupportedDeviceTuple(vendorID gousb.ID, productID gousb.ID) (DeviceTuple, bool) {
	for k, device := range SupportedDevices {
		if device.VendorID == vendorID && device.ProductID == productID {
			return DeviceTuple{DeviceType: k, Device: device}, true
		}
	}
	return DeviceTuple{}, false
}

func ParseHexUINT16(str string) (uint16, error) {
	val, err := strconv.ParseUint(str, 16, 16)
	if err != nil {
		return 0, err
	}

	return uint16(val), nil
}
