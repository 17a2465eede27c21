package serialport

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial"
)

// ErrNoPort is returned when a pattern matches no port.
var ErrNoPort = errors.New("no serial port matches")

// ports is replaced in tests.
var ports = serial.GetPortsList

// IsPattern reports whether address contains glob characters.
func IsPattern(address string) bool {
	return strings.ContainsAny(address, "*?[")
}

// Resolve turns an address into a concrete port path.
//
// Addresses without glob characters, like COM3 or /dev/ttyACM0, are returned
// unchanged. Patterns are matched against the filesystem first and then against
// the ports the OS reports; the lexicographically first match wins.
func Resolve(pattern string) (string, error) {
	if !IsPattern(pattern) {
		return pattern, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		matches, err = matchPorts(pattern)
		if err != nil {
			return "", err
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", pattern, ErrNoPort)
	}
	sort.Strings(matches)
	return matches[0], nil
}

func matchPorts(pattern string) ([]string, error) {
	list, err := ports()
	if err != nil {
		return nil, err
	}
	var res []string
	for _, name := range list {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if ok {
			res = append(res, name)
		}
	}
	return res, nil
}

// List returns the serial ports the OS reports, sorted.
func List() ([]string, error) {
	list, err := ports()
	if err != nil {
		return nil, err
	}
	sort.Strings(list)
	return list, nil
}
