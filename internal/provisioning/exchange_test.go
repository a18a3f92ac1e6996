package provisioning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type mockAdvertiser struct {
	advertised int
	withdrawn  int
	err        error
}

func (m *mockAdvertiser) Advertise(context.Context) error { m.advertised++; return m.err }
func (m *mockAdvertiser) Withdraw() error                 { m.withdrawn++; return nil }

func TestExchange_SubmitRequiresActiveWindow(t *testing.T) {
	e := NewExchange(nil)

	if err := e.Submit("HomeNet", "pw"); !errors.Is(err, ErrNotActive) {
		t.Errorf("Submit() on closed exchange error = %v, want ErrNotActive", err)
	}
	if e.Done() {
		t.Error("Done() = true on closed exchange")
	}
}

func TestExchange_Lifecycle(t *testing.T) {
	adv := &mockAdvertiser{}
	e := NewExchange(adv)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if adv.advertised != 1 {
		t.Errorf("advertised %d times, want 1", adv.advertised)
	}
	if e.Done() {
		t.Error("Done() = true before submission")
	}

	if err := e.Submit("HomeNet", "hunter22"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !e.Done() {
		t.Error("Done() = false after submission")
	}
	name, secret := e.Result()
	if name != "HomeNet" || secret != "hunter22" {
		t.Errorf("Result() = %q, %q", name, secret)
	}

	if err := e.Submit("Other", "pw"); !errors.Is(err, ErrAlreadyComplete) {
		t.Errorf("second Submit() error = %v, want ErrAlreadyComplete", err)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if adv.withdrawn != 1 {
		t.Errorf("withdrawn %d times, want 1", adv.withdrawn)
	}
	if e.Done() {
		t.Error("Done() = true after Stop")
	}

	// Stop on a closed exchange does not withdraw again.
	if err := e.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if adv.withdrawn != 1 {
		t.Errorf("withdrawn %d times after second Stop, want 1", adv.withdrawn)
	}
}

func TestExchange_RestartClearsResult(t *testing.T) {
	e := NewExchange(nil)
	ctx := context.Background()

	_ = e.Start(ctx)
	_ = e.Submit("HomeNet", "pw")
	_ = e.Stop()
	_ = e.Start(ctx)

	if e.Done() {
		t.Error("Done() = true after reopening")
	}
	if name, _ := e.Result(); name != "" {
		t.Errorf("Result() name = %q after reopening, want empty", name)
	}
}

func TestExchange_AdvertiseFailureDoesNotBlock(t *testing.T) {
	e := NewExchange(&mockAdvertiser{err: errors.New("no multicast")})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if err := e.Submit("HomeNet", "pw"); err != nil {
		t.Errorf("Submit() error = %v", err)
	}
}

func TestExchange_SubmitValidation(t *testing.T) {
	e := NewExchange(nil)
	_ = e.Start(context.Background())

	tests := []struct {
		name   string
		ssid   string
		secret string
	}{
		{"empty name", "", "pw"},
		{"long name", strings.Repeat("n", 64), "pw"},
		{"long secret", "HomeNet", strings.Repeat("s", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Submit(tt.ssid, tt.secret); !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Submit() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
	if e.Done() {
		t.Error("invalid submissions completed the exchange")
	}
}

func TestExchange_ConcurrentSubmit(t *testing.T) {
	e := NewExchange(nil)
	_ = e.Start(context.Background())

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if e.Submit("HomeNet", "pw") == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted %d submissions, want 1", accepted)
	}
}

func TestExchange_SnapshotOmitsSecret(t *testing.T) {
	e := NewExchange(nil)
	_ = e.Start(context.Background())
	_ = e.Submit("HomeNet", "pw")

	snap := e.Snapshot()
	if !snap.Active || !snap.Done || snap.OpenedAt.IsZero() || snap.Submitted.IsZero() {
		t.Errorf("Snapshot() = %+v", snap)
	}
}

func TestMDNSAdvertiser_TXT(t *testing.T) {
	a := NewMDNSAdvertiser(MDNSConfig{
		DeviceID:   "lamp-1",
		SubmitPath: "/api/v1/provisioning/credentials",
		Port:       8080,
	})

	if a.cfg.Instance != "lamp-1" {
		t.Errorf("Instance = %q, want device ID", a.cfg.Instance)
	}
	if a.cfg.ServiceType != DefaultServiceType {
		t.Errorf("ServiceType = %q, want %q", a.cfg.ServiceType, DefaultServiceType)
	}
	txt := strings.Join(a.txt(), ",")
	if txt != "state=provisioning,id=lamp-1,path=/api/v1/provisioning/credentials" {
		t.Errorf("txt() = %q", txt)
	}
	if a.interfaces() != nil {
		t.Error("interfaces() != nil with no interface configured")
	}
	if err := a.Withdraw(); err != nil {
		t.Errorf("Withdraw() before Advertise error = %v", err)
	}
}
