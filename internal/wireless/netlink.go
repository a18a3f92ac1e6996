package wireless

import (
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
)

// Interfaces answers questions about a network interface.
type Interfaces interface {
	// SetUp brings the interface administratively up.
	SetUp(name string) error

	// IPv4 returns the first IPv4 address on the interface, or "".
	IPv4(name string) (string, error)
}

// Netlink implements Interfaces with rtnetlink.
type Netlink struct{}

// SetUp brings the interface up.
func (Netlink) SetUp(name string) error {
	link, err := lookup(name)
	if err != nil {
		return err
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("set %s up: %w", name, err)
	}
	return nil
}

// IPv4 returns the interface's first IPv4 address.
func (Netlink) IPv4(name string) (string, error) {
	link, err := lookup(name)
	if err != nil {
		return "", err
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("list %s addresses: %w", name, err)
	}
	for _, a := range addrs {
		if a.IPNet != nil && a.IP.To4() != nil {
			return a.IP.String(), nil
		}
	}
	return "", nil
}

func lookup(name string) (netlink.Link, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrInterfaceNotFound, name)
		}
		return nil, fmt.Errorf("get link %s: %w", name, err)
	}
	return link, nil
}
