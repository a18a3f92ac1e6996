package provisioning

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// mDNS defaults.
const (
	DefaultServiceType = "_lightnode._tcp"
	Domain             = "local."
	advertiseTTL       = 120
)

// MDNSConfig describes the provisioning advertisement.
type MDNSConfig struct {
	Instance    string
	ServiceType string
	Port        int

	// Interface restricts the advertisement. Empty means all interfaces.
	Interface string

	// DeviceID and SubmitPath are published as TXT records.
	DeviceID   string
	SubmitPath string
}

// MDNSAdvertiser advertises the node with zeroconf.
type MDNSAdvertiser struct {
	cfg MDNSConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates an advertiser. Nothing is sent until Advertise.
func NewMDNSAdvertiser(cfg MDNSConfig) *MDNSAdvertiser {
	if cfg.ServiceType == "" {
		cfg.ServiceType = DefaultServiceType
	}
	if cfg.Instance == "" {
		cfg.Instance = cfg.DeviceID
	}
	return &MDNSAdvertiser{cfg: cfg}
}

// Advertise registers the service, replacing any earlier registration.
func (a *MDNSAdvertiser) Advertise(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(
		a.cfg.Instance,
		a.cfg.ServiceType,
		Domain,
		a.cfg.Port,
		a.txt(),
		a.interfaces(),
		zeroconf.TTL(advertiseTTL),
	)
	if err != nil {
		return fmt.Errorf("registering %s: %w", a.cfg.ServiceType, err)
	}
	a.server = server
	return nil
}

// Withdraw stops the advertisement.
func (a *MDNSAdvertiser) Withdraw() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

func (a *MDNSAdvertiser) txt() []string {
	txt := []string{"state=provisioning"}
	if a.cfg.DeviceID != "" {
		txt = append(txt, "id="+a.cfg.DeviceID)
	}
	if a.cfg.SubmitPath != "" {
		txt = append(txt, "path="+a.cfg.SubmitPath)
	}
	return txt
}

// interfaces returns nil (all interfaces) when none is configured or the
// configured one is missing.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
