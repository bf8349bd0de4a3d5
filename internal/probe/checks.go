package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultPrinterPort is the raw JetDirect port, used when discovery reports none.
const DefaultPrinterPort = 9100

// failed builds a fail Result from err.
func failed(err error) Result {
	return Result{Err: err, Detail: err.Error()}
}

// pingResult applies the RTT threshold to a ping.
func pingResult(pr PingResult, addr string, maxRTT time.Duration) Result {
	if !pr.Success {
		err := pr.Error
		if err == nil {
			err = fmt.Errorf("ping %s: no reply", addr)
		}
		return failed(err)
	}
	if maxRTT > 0 && pr.RTT > maxRTT {
		return Result{
			Latency: pr.RTT,
			Err:     ErrSlow,
			Detail:  fmt.Sprintf("%s rtt %s > %s", addr, pr.RTT.Round(time.Millisecond), maxRTT),
		}
	}
	return Result{OK: true, Latency: pr.RTT, Detail: addr}
}

// PingCheck pings a fixed host.
type PingCheck struct {
	Host   string
	Tgt    Target
	Pinger Pinger
	MaxRTT time.Duration
}

func (c *PingCheck) Name() string   { return c.Tgt.ID + "-ping" }
func (c *PingCheck) Target() Target { return c.Tgt }

func (c *PingCheck) Run(ctx context.Context) Result {
	return pingResult(c.Pinger.Ping(ctx, c.Host, Timeout), c.Host, c.MaxRTT)
}

// PrinterPingCheck locates the printer over mDNS and pings it.
type PrinterPingCheck struct {
	Locator *PrinterLocator
	Pinger  Pinger
	MaxRTT  time.Duration
}

func (c *PrinterPingCheck) Name() string   { return "printer-ping" }
func (c *PrinterPingCheck) Target() Target { return Printer }

func (c *PrinterPingCheck) Run(ctx context.Context) Result {
	svc, err := c.Locator.Locate(ctx)
	if err != nil {
		return failed(err)
	}
	addr := svc.Address.String()
	return pingResult(c.Pinger.Ping(ctx, addr, Timeout), addr, c.MaxRTT)
}

// DNSCheck resolves Host to an IPv4 address.
type DNSCheck struct {
	Host     string
	Tgt      Target
	Resolver *net.Resolver // nil uses net.DefaultResolver
}

func (c *DNSCheck) Name() string   { return c.Tgt.ID + "-dns" }
func (c *DNSCheck) Target() Target { return c.Tgt }

func (c *DNSCheck) Run(ctx context.Context) Result {
	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	start := time.Now()
	ips, err := r.LookupIP(ctx, "ip4", c.Host)
	if err != nil {
		return failed(fmt.Errorf("resolve %s: %w", c.Host, err))
	}
	if len(ips) == 0 {
		return failed(fmt.Errorf("resolve %s: no addresses", c.Host))
	}
	return Result{OK: true, Latency: time.Since(start), Detail: ips[0].String()}
}

// GatewayPingCheck pings the default IPv4 gateway.
type GatewayPingCheck struct {
	Pinger  Pinger
	MaxRTT  time.Duration
	Gateway func() (net.IP, error) // nil uses DefaultGateway
}

func (c *GatewayPingCheck) Name() string   { return "gateway-ping" }
func (c *GatewayPingCheck) Target() Target { return External }

func (c *GatewayPingCheck) Run(ctx context.Context) Result {
	lookup := c.Gateway
	if lookup == nil {
		lookup = DefaultGateway
	}
	gw, err := lookup()
	if err != nil {
		return failed(err)
	}
	addr := gw.String()
	return pingResult(c.Pinger.Ping(ctx, addr, Timeout), addr, c.MaxRTT)
}

// PrinterPortCheck opens a TCP connection to the printer's service port.
type PrinterPortCheck struct {
	Locator *PrinterLocator
	Dialer  net.Dialer
}

func (c *PrinterPortCheck) Name() string   { return "printer-port" }
func (c *PrinterPortCheck) Target() Target { return Printer }

func (c *PrinterPortCheck) Run(ctx context.Context) Result {
	svc, err := c.Locator.Locate(ctx)
	if err != nil {
		return failed(err)
	}
	port := svc.Port
	if port == 0 {
		port = DefaultPrinterPort
	}
	addr := net.JoinHostPort(svc.Address.String(), strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return failed(fmt.Errorf("connect %s: %w", addr, err))
	}
	conn.Close()
	return Result{OK: true, Latency: time.Since(start), Detail: addr}
}
