package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// DiscoveryTimeout bounds one mDNS browse.
const DiscoveryTimeout = 3 * time.Second

// Service is one discovered service instance.
type Service struct {
	Name    string
	Address net.IP
	Port    int
}

// Discoverer browses for instances of a DNS-SD service type.
type Discoverer interface {
	Browse(ctx context.Context, service, domain string) ([]Service, error)
}

// ZeroconfDiscoverer browses with multicast DNS.
type ZeroconfDiscoverer struct {
	Timeout time.Duration
}

// Browse collects every IPv4 instance that answers within the timeout.
// Duplicate (name, address) pairs are collapsed.
func (z ZeroconfDiscoverer) Browse(ctx context.Context, service, domain string) ([]Service, error) {
	timeout := z.Timeout
	if timeout <= 0 {
		timeout = DiscoveryTimeout
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found []Service
		seen  = make(map[string]bool)
	)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for e := range entries {
			mu.Lock()
			for _, ip := range e.AddrIPv4 {
				key := e.Instance + "|" + ip.String()
				if seen[key] {
					continue
				}
				seen[key] = true
				found = append(found, Service{Name: e.Instance, Address: ip, Port: e.Port})
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(browseCtx, service, domain, entries); err != nil {
		return nil, fmt.Errorf("mdns browse %s: %w", service, err)
	}
	<-browseCtx.Done()

	// Answers arriving after the deadline are ignored.
	mu.Lock()
	found = append([]Service(nil), found...)
	mu.Unlock()

	sort.Slice(found, func(i, j int) bool {
		return found[i].Address.String() < found[j].Address.String()
	})
	return found, nil
}

// PrinterLocator resolves the single printer on the local network.
type PrinterLocator struct {
	Discoverer Discoverer
}

// Locate returns the printer, or an error when zero or several distinct
// addresses answer.
func (l *PrinterLocator) Locate(ctx context.Context) (Service, error) {
	found, err := l.Discoverer.Browse(ctx, PrinterService, PrinterDomain)
	if err != nil {
		return Service{}, err
	}

	addrs := make(map[string]bool)
	for _, s := range found {
		addrs[s.Address.String()] = true
	}

	switch len(addrs) {
	case 0:
		return Service{}, ErrNoPrinter
	case 1:
		return found[0], nil
	default:
		return Service{}, fmt.Errorf("%w: %s", ErrMultiplePrinters, addressList(found))
	}
}

func addressList(found []Service) string {
	parts := make([]string, 0, len(found))
	for _, s := range found {
		parts = append(parts, s.Address.String())
	}
	return strings.Join(parts, " ")
}
