package usb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/DiscoResearchSat/go-udev/netlink"
	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/sigbench/sigctl/pkg/log"
)

func (d *Device) String() string {
	return fmt.Sprintf("%s pid: %s vid: %s", d.Name, d.ProductID.String(), d.VendorID.String())
}

// DeviceManager tracks the attached radios. With udev available it also
// follows hotplug events, otherwise only explicit scans update the map.
type DeviceManager struct {
	sync.Mutex
	sync.WaitGroup

	// Currently attached supported devices
	devices DeviceMap
	// Channel to close the udev monitor if its enabled
	udevCloseChannel chan struct{}
	// The udev event connection, nil when hotplug monitoring is off
	udev *netlink.UEventConn
}

func NewDeviceManager() *DeviceManager {
	m := &DeviceManager{
		devices:          make(DeviceMap),
		udev:             new(netlink.UEventConn),
		udevCloseChannel: make(chan struct{}),
	}

	if err := m.udev.Connect(netlink.UdevEvent); err != nil {
		log.Error("could not connect to udev, hotplug support not available", zap.Error(err))
		m.udev = nil
	} else {
		m.Add(1)
		go m.monitor()
	}

	return m
}

// FindSupportedDevices scans the bus for every known radio
func (m *DeviceManager) FindSupportedDevices() DeviceMap {
	m.Lock()
	defer m.Unlock()

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	for devType, d := range SupportedDevices {
		dev, err := usbCtx.OpenDeviceWithVIDPID(d.VendorID, d.ProductID)
		if dev == nil {
			log.Debug("device not attached", zap.String("device", d.String()))
			continue
		}

		_ = dev.Close()

		if err != nil {
			log.Error("error while iterating over usb devices", zap.Error(err))
			continue
		}

		m.devices[devType] = d
		log.Info("found supported device", zap.String("device", d.String()))
	}

	return m.devices
}

// HasRadio reports whether any capture-capable radio is attached
func (m *DeviceManager) HasRadio() bool {
	m.Lock()
	defer m.Unlock()

	for devType := range m.devices {
		if devType == USRPB200 || devType == USRPB210 {
			return true
		}
	}
	return false
}

// ResetDevice tries to reset the given radio, first with its dedicated
// reset tool and then with a plain usb reset.
func (m *DeviceManager) ResetDevice(target DeviceType) error {
	m.Lock()
	defer m.Unlock()

	supd, exists := SupportedDevices[target]
	if !exists {
		return fmt.Errorf("device unknown, add it to the code")
	}

	d, exists := m.devices[target]
	if !exists {
		return NewNotFoundError(fmt.Sprintf("device with name '%s' not attached", supd.Name))
	}

	if d.ResetCMD != nil {
		if err := d.ResetCMD.Run(); err == nil {
			log.Info("device reset cmd executed", zap.String("device", d.String()))
			return nil
		}
		log.Error("device reset with cmd failed, trying a usb reset", zap.String("device", d.String()))
	}

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	dev, _ := usbCtx.OpenDeviceWithVIDPID(d.VendorID, d.ProductID)
	if dev == nil {
		log.Error("the device was detected previously, but disappeared", zap.String("device", d.String()))
		return NewVanishedError(fmt.Sprintf("%s disappeared but was detected before", d.String()))
	}

	defer dev.Close()

	if err := dev.Reset(); err != nil {
		log.Error("resetting usb device failed", zap.String("device", d.String()))
		return err
	}

	return nil
}

func (m *DeviceManager) hotplugReceived(vendorID uint16, productID uint16, wasAdded bool) {
	m.Lock()
	defer m.Unlock()

	// Silently ignore devices we do not support
	tuple, found := FindSupportedDeviceTuple(gousb.ID(vendorID), gousb.ID(productID))
	if !found {
		return
	}

	if !wasAdded {
		delete(m.devices, tuple.DeviceType)
		log.Info("hotplug device removed", zap.String("device", tuple.Device.String()))
	} else {
		m.devices[tuple.DeviceType] = tuple.Device
		log.Info("hotplug device added", zap.String("device", tuple.Device.String()))
	}
}

func (m *DeviceManager) Shutdown() {
	m.Lock()

	if m.udev != nil {
		log.Info("closing udev monitor channel")
		m.udevCloseChannel <- struct{}{}
	}

	m.Unlock()
	m.Wait()
}

// monitor follows usb_device bind/unbind events
func (m *DeviceManager) monitor() {
	errs := make(chan error)

	matchRule := fmt.Sprintf("%s|%s", netlink.BIND, netlink.UNBIND)
	deviceMatcher := &netlink.RuleDefinitions{
		Rules: []netlink.RuleDefinition{
			{
				Action: &matchRule,
				Env: map[string]string{
					"DEVTYPE": "usb_device",
				},
			},
		},
	}

	ctx, cancelUdevMonitor := context.WithCancel(context.Background())
	queue := m.udev.Monitor(ctx, errs, deviceMatcher)

	defer func() {
		m.Lock()
		m.udev.Close()
		m.Done()
		m.Unlock()
	}()

udevMonitorLoop:
	for {
		select {
		case <-m.udevCloseChannel:
			cancelUdevMonitor()
			// Wait for the context-cancelled error before tearing down
			<-errs
			break udevMonitorLoop

		case uevent := <-queue:
			pstr, pok := uevent.Env["PRODUCT"]
			if !pok {
				continue
			}

			// PRODUCT is e.g. "2500/20/100" -> VID/PID/REVISION
			s := strings.Split(pstr, "/")
			if len(s) < 2 {
				log.Error("malformed product string", zap.String("product", pstr))
				continue
			}

			vid, err := ParseHexUINT16(s[0])
			if err != nil {
				log.Error("could not parse hex vid", zap.String("vid", s[0]))
				continue
			}
			pid, err := ParseHexUINT16(s[1])
			if err != nil {
				log.Error("could not parse hex pid", zap.String("pid", s[1]))
				continue
			}

			m.hotplugReceived(vid, pid, uevent.Action == netlink.BIND)
		case err := <-errs:
			log.Error("udev monitor encountered an error", zap.Error(err))
		}
	}

	log.Info("stopped observing udev events")
}
