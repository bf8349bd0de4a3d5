package probe

import (
	"fmt"
	"net"

	"github.com/jackpal/gateway"
)

var discoverGateway = gateway.DiscoverGateway

// DefaultGateway returns the IPv4 default gateway of this host.
func DefaultGateway() (net.IP, error) {
	ip, err := discoverGateway()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGateway, err)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("%w: %s is not IPv4", ErrNoGateway, ip)
	}
	return v4, nil
}
