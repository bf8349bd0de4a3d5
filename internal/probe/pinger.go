package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const echoData = "network-status"

// PingResult captures a single echo round trip.
type PingResult struct {
	RTT     time.Duration
	Success bool
	Error   error
}

// Pinger sends a single ping and returns the result.
type Pinger interface {
	Ping(ctx context.Context, addr string, timeout time.Duration) PingResult
}

// ICMPPinger sends ICMP echo requests using raw sockets.
type ICMPPinger struct {
	id  int
	seq uint32
}

// NewICMPPinger initializes a pinger with a process-scoped identifier.
func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{id: os.Getpid() & 0xffff}
}

// Ping sends one ICMP echo request and waits for the matching reply.
func (p *ICMPPinger) Ping(ctx context.Context, addr string, timeout time.Duration) PingResult {
	if err := ctx.Err(); err != nil {
		return PingResult{Error: err}
	}

	ipAddr, err := net.ResolveIPAddr("ip", addr)
	if err != nil {
		return PingResult{Error: fmt.Errorf("resolve %s: %w", addr, err)}
	}

	network, protocol, requestType, replyType := icmpSettings(ipAddr.IP)
	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return PingResult{Error: err}
	}
	defer conn.Close()

	seq := int(atomic.AddUint32(&p.seq, 1) & 0xffff)
	msg := icmp.Message{
		Type: requestType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   p.id,
			Seq:  seq,
			Data: []byte(echoData),
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return PingResult{Error: err}
	}

	if err := conn.SetDeadline(effectiveDeadline(ctx, timeout)); err != nil {
		return PingResult{Error: err}
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, ipAddr); err != nil {
		return PingResult{Error: err}
	}

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return PingResult{Error: fmt.Errorf("ping timeout: %w", err)}
			}
			return PingResult{Error: err}
		}

		reply, err := icmp.ParseMessage(protocol, buf[:n])
		if err != nil || reply.Type != replyType {
			continue
		}
		body, ok := reply.Body.(*icmp.Echo)
		if !ok || body.ID != p.id || body.Seq != seq {
			continue
		}
		return PingResult{Success: true, RTT: time.Since(start)}
	}
}

func icmpSettings(ip net.IP) (network string, protocol int, requestType, replyType icmp.Type) {
	if ip.To4() != nil {
		return "ip4:icmp", ipv4.ICMPTypeEcho.Protocol(), ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	}
	return "ip6:ipv6-icmp", ipv6.ICMPTypeEchoRequest.Protocol(), ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
}

func effectiveDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}

var timePattern = regexp.MustCompile(`time=([0-9.]+)\s*ms`)

// ExternalPinger invokes the system ping command for environments without raw socket access.
type ExternalPinger struct{}

// Ping runs `ping -c 1` and parses the RTT from its output.
func (ExternalPinger) Ping(ctx context.Context, addr string, timeout time.Duration) PingResult {
	secs := int(timeout.Seconds() + 0.5)
	if secs < 1 {
		secs = 1
	}
	start := time.Now()
	cmd := exec.CommandContext(ctx, "ping", "-n", "-c", "1", "-w", strconv.Itoa(secs), addr)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return PingResult{Error: fmt.Errorf("external ping failed: %w", err)}
	}

	rtt := parseRTT(out)
	if rtt == 0 {
		rtt = time.Since(start)
	}
	return PingResult{Success: true, RTT: rtt}
}

func parseRTT(output []byte) time.Duration {
	matches := timePattern.FindSubmatch(output)
	if len(matches) < 2 {
		return 0
	}
	value, err := strconv.ParseFloat(string(matches[1]), 64)
	if err != nil {
		return 0
	}
	return time.Duration(value * float64(time.Millisecond))
}

// FallbackPinger delegates to primary, then secondary when permission errors occur.
type FallbackPinger struct {
	primary   Pinger
	secondary Pinger
}

// NewFallbackPinger wraps primary with a secondary fallback.
func NewFallbackPinger(primary, secondary Pinger) *FallbackPinger {
	return &FallbackPinger{primary: primary, secondary: secondary}
}

// Ping uses the primary pinger and falls back on permission-related errors.
func (p *FallbackPinger) Ping(ctx context.Context, addr string, timeout time.Duration) PingResult {
	result := p.primary.Ping(ctx, addr, timeout)
	if result.Success || !isPermissionError(result.Error) {
		return result
	}
	return p.secondary.Ping(ctx, addr, timeout)
}

func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "operation not permitted") || strings.Contains(msg, "permission denied")
}
