// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build linux

package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// openHIDRaw opens the hidraw node and sends the key as a feature report.
// An empty path is resolved by scanning /dev/hidraw* for the CO2 monitor.
func openHIDRaw(path string, key [8]byte) (hidDevice, error) {
	if path == "" {
		found, err := findHIDRaw(CO2MonVendorID, CO2MonProductID)
		if err != nil {
			return nil, err
		}
		path = found
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("co2mon: open %s: %w", path, err)
	}

	report := make([]byte, 1+len(key)) // report ID 0, then the key
	copy(report[1:], key[:])
	if err := setFeatureReport(f, report); err != nil {
		f.Close()
		return nil, fmt.Errorf("co2mon: send key to %s: %w", path, err)
	}
	return f, nil
}

func findHIDRaw(vendor, product uint16) (string, error) {
	nodes, err := filepath.Glob("/dev/hidraw*")
	if err != nil {
		return "", err
	}
	for _, node := range nodes {
		fd, err := unix.Open(node, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		info, err := unix.IoctlHIDGetRawInfo(fd)
		unix.Close(fd)
		if err != nil {
			continue
		}
		if uint16(info.Vendor) == vendor && uint16(info.Product) == product {
			return node, nil
		}
	}
	return "", fmt.Errorf("co2mon: no hidraw device %04x:%04x found", vendor, product)
}

// hidiocsfeature is HIDIOCSFEATURE(len) from linux/hidraw.h.
func hidiocsfeature(n int) uintptr {
	return uintptr(3)<<30 | uintptr(n)<<16 | uintptr('H')<<8 | 0x06
}

func setFeatureReport(f *os.File, report []byte) error {
	if len(report) == 0 {
		return errors.New("empty feature report")
	}
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var errno syscall.Errno
	if err := rc.Control(func(fd uintptr) {
		_, _, errno = unix.Syscall(unix.SYS_IOCTL, fd, hidiocsfeature(len(report)), uintptr(unsafe.Pointer(&report[0])))
	}); err != nil {
		return err
	}
	if errno != 0 {
		return errno
	}
	return nil
}
