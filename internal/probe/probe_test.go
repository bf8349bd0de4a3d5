package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	mu     sync.Mutex
	result PingResult
	addrs  []string
}

func (f *fakePinger) Ping(_ context.Context, addr string, _ time.Duration) PingResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs = append(f.addrs, addr)
	return f.result
}

func (f *fakePinger) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.addrs...)
}

type fakeDiscoverer struct {
	services []Service
	err      error
	service  string
}

func (f *fakeDiscoverer) Browse(_ context.Context, service, _ string) ([]Service, error) {
	f.service = service
	return f.services, f.err
}

func printerAt(ip string, port int) Service {
	return Service{Name: "office", Address: net.ParseIP(ip), Port: port}
}

func TestDefaultGateway(t *testing.T) {
	orig := discoverGateway
	defer func() { discoverGateway = orig }()

	discoverGateway = func() (net.IP, error) { return net.IPv4(192, 168, 1, 1), nil }
	ip, err := DefaultGateway()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", ip.String())
	assert.Len(t, ip, net.IPv4len)

	discoverGateway = func() (net.IP, error) { return nil, errors.New("no gateway found") }
	_, err = DefaultGateway()
	assert.ErrorIs(t, err, ErrNoGateway)

	discoverGateway = func() (net.IP, error) { return net.ParseIP("fe80::1"), nil }
	_, err = DefaultGateway()
	assert.ErrorIs(t, err, ErrNoGateway)
}

func TestParseRTT(t *testing.T) {
	out := []byte("64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=12.4 ms\n")
	assert.Equal(t, 12400*time.Microsecond, parseRTT(out))
	assert.Zero(t, parseRTT([]byte("Request timeout")))
}

func TestIsPermissionError(t *testing.T) {
	assert.True(t, isPermissionError(os.ErrPermission))
	assert.True(t, isPermissionError(errors.New("listen ip4:icmp: socket: operation not permitted")))
	assert.False(t, isPermissionError(errors.New("ping timeout")))
	assert.False(t, isPermissionError(nil))
}

func TestFallbackPinger(t *testing.T) {
	primary := &fakePinger{result: PingResult{Error: os.ErrPermission}}
	secondary := &fakePinger{result: PingResult{Success: true, RTT: time.Millisecond}}
	p := NewFallbackPinger(primary, secondary)

	res := p.Ping(context.Background(), "10.0.0.1", time.Second)
	assert.True(t, res.Success)
	assert.Len(t, secondary.calls(), 1)

	primary.result = PingResult{Error: errors.New("ping timeout")}
	res = p.Ping(context.Background(), "10.0.0.1", time.Second)
	assert.False(t, res.Success)
	assert.Len(t, secondary.calls(), 1, "non-permission errors must not fall back")
}

func TestPrinterLocator(t *testing.T) {
	tests := []struct {
		name     string
		services []Service
		err      error
		wantErr  error
		wantAddr string
	}{
		{name: "none", wantErr: ErrNoPrinter},
		{name: "one", services: []Service{printerAt("192.168.1.20", 9100)}, wantAddr: "192.168.1.20"},
		{
			name:     "same printer announced twice",
			services: []Service{printerAt("192.168.1.20", 9100), printerAt("192.168.1.20", 9100)},
			wantAddr: "192.168.1.20",
		},
		{
			name:     "two printers",
			services: []Service{printerAt("192.168.1.20", 9100), printerAt("192.168.1.21", 9100)},
			wantErr:  ErrMultiplePrinters,
		},
		{name: "browse error", err: errors.New("no multicast interface"), wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDiscoverer{services: tt.services, err: tt.err}
			svc, err := (&PrinterLocator{Discoverer: d}).Locate(context.Background())
			assert.Equal(t, PrinterService, d.service)

			switch {
			case tt.err != nil:
				assert.ErrorIs(t, err, tt.err)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantAddr, svc.Address.String())
			}
		})
	}
}

func TestPingCheckThreshold(t *testing.T) {
	pinger := &fakePinger{}
	c := &PingCheck{Host: ExternalHost, Tgt: External, Pinger: pinger, MaxRTT: MaxPing}

	assert.Equal(t, "external-ping", c.Name())
	assert.Equal(t, External, c.Target())

	pinger.result = PingResult{Success: true, RTT: MaxPing}
	res := c.Run(context.Background())
	assert.True(t, res.OK, "rtt equal to the limit passes")

	pinger.result = PingResult{Success: true, RTT: MaxPing + time.Millisecond}
	res = c.Run(context.Background())
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrSlow)
	assert.Equal(t, MaxPing+time.Millisecond, res.Latency)

	pinger.result = PingResult{}
	res = c.Run(context.Background())
	assert.False(t, res.OK)
	assert.Error(t, res.Err)

	assert.Equal(t, []string{ExternalHost, ExternalHost, ExternalHost}, pinger.calls())
}

func TestPrinterPingCheck(t *testing.T) {
	pinger := &fakePinger{result: PingResult{Success: true, RTT: 5 * time.Millisecond}}
	d := &fakeDiscoverer{services: []Service{printerAt("192.168.1.20", 9100)}}
	c := &PrinterPingCheck{Locator: &PrinterLocator{Discoverer: d}, Pinger: pinger, MaxRTT: MaxPing}

	res := c.Run(context.Background())
	require.True(t, res.OK, res.Detail)
	assert.Equal(t, []string{"192.168.1.20"}, pinger.calls())

	d.services = nil
	res = c.Run(context.Background())
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNoPrinter)
	assert.Len(t, pinger.calls(), 1, "no ping without a printer")
}

func TestGatewayPingCheck(t *testing.T) {
	pinger := &fakePinger{result: PingResult{Success: true, RTT: time.Millisecond}}
	c := &GatewayPingCheck{
		Pinger:  pinger,
		MaxRTT:  MaxPing,
		Gateway: func() (net.IP, error) { return net.IPv4(192, 168, 1, 1), nil },
	}
	res := c.Run(context.Background())
	assert.True(t, res.OK)
	assert.Equal(t, []string{"192.168.1.1"}, pinger.calls())

	c.Gateway = func() (net.IP, error) { return nil, ErrNoGateway }
	res = c.Run(context.Background())
	assert.ErrorIs(t, res.Err, ErrNoGateway)
}

func TestPrinterPortCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	d := &fakeDiscoverer{services: []Service{printerAt("127.0.0.1", port)}}
	c := &PrinterPortCheck{Locator: &PrinterLocator{Discoverer: d}}

	res := c.Run(context.Background())
	assert.True(t, res.OK, res.Detail)

	ln.Close()
	res = c.Run(context.Background())
	assert.False(t, res.OK)
}

type fakeSpeedTester struct {
	result SpeedResult
	err    error
	ctxErr error
}

func (f *fakeSpeedTester) Test(ctx context.Context) (SpeedResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		f.ctxErr = errors.New("no deadline")
	}
	return f.result, f.err
}

func TestSpeedCheck(t *testing.T) {
	good := SpeedResult{
		Server:      "Example ISP (London)",
		Latency:     15 * time.Millisecond,
		DownloadBps: 48e6,
		UploadBps:   9e6,
	}
	tests := []struct {
		name     string
		mutate   func(*SpeedResult)
		err      error
		wantOK   bool
		wantSlow string
	}{
		{name: "fast link", mutate: func(*SpeedResult) {}, wantOK: true},
		{name: "download at limit", mutate: func(r *SpeedResult) { r.DownloadBps = MinDownloadBps }, wantOK: true},
		{name: "slow download", mutate: func(r *SpeedResult) { r.DownloadBps = 12e6 }, wantSlow: "download"},
		{name: "slow upload", mutate: func(r *SpeedResult) { r.UploadBps = 4.9e6 }, wantSlow: "upload"},
		{name: "high latency", mutate: func(r *SpeedResult) { r.Latency = MaxPing + time.Millisecond }, wantSlow: "latency"},
		{name: "tester error", mutate: func(*SpeedResult) {}, err: errors.New("fetch server list: timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := good
			tt.mutate(&res)
			tester := &fakeSpeedTester{result: res, err: tt.err}
			c := &SpeedCheck{Tester: tester, MinDownload: MinDownloadBps, MinUpload: MinUploadBps, MaxLatency: MaxPing}

			got := c.Run(context.Background())
			require.NoError(t, tester.ctxErr, "tester must run under a deadline")
			assert.Equal(t, tt.wantOK, got.OK, got.Detail)

			switch {
			case tt.err != nil:
				assert.ErrorIs(t, got.Err, tt.err)
				assert.Contains(t, got.Detail, "speedtest")
			case tt.wantSlow != "":
				assert.ErrorIs(t, got.Err, ErrSlow)
				assert.Contains(t, got.Err.Error(), tt.wantSlow)
				assert.Contains(t, got.Detail, "Mbit/s")
			default:
				require.NoError(t, got.Err)
				assert.Contains(t, got.Detail, "Example ISP")
				assert.Equal(t, res.Latency, got.Latency)
			}
		})
	}
}

func TestSpeedCheckReportsEveryShortfall(t *testing.T) {
	tester := &fakeSpeedTester{result: SpeedResult{Latency: time.Second, DownloadBps: 1e6, UploadBps: 1e5}}
	c := &SpeedCheck{Tester: tester, MinDownload: MinDownloadBps, MinUpload: MinUploadBps, MaxLatency: MaxPing}

	res := c.Run(context.Background())
	assert.False(t, res.OK)
	assert.EqualError(t, res.Err, ErrSlow.Error()+": download, upload, latency")
}

func TestDNSCheckCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &DNSCheck{Host: "example.invalid", Tgt: External}
	res := c.Run(ctx)
	assert.False(t, res.OK)
	assert.Equal(t, "external-dns", c.Name())
}

func TestSuiteChecks(t *testing.T) {
	s := DefaultSuite(&fakePinger{}, &fakeDiscoverer{})

	names := func(checks []Check) []string {
		out := make([]string, len(checks))
		for i, c := range checks {
			out[i] = c.Name()
		}
		return out
	}
	assert.Equal(t, []string{"gateway-ping", "external-ping", "external-dns", "printer-ping"}, names(s.Checks(false)))
	assert.Equal(t, []string{"printer-port", "speedtest"}, names(s.Extended))

	extended := s.Checks(true)
	assert.Len(t, extended, len(s.Normal)+len(s.Extended))
	seen := make(map[string]bool)
	for _, c := range extended {
		assert.False(t, seen[c.Name()], "duplicate check %s", c.Name())
		seen[c.Name()] = true
	}

	covered := make(map[Target]bool)
	for _, c := range s.Normal {
		covered[c.Target()] = true
	}
	for _, tgt := range Targets {
		assert.True(t, covered[tgt], "normal cycle must check %s", tgt.ID)
	}
}
