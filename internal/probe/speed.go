package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/showwin/speedtest-go/speedtest"
)

// SpeedResult is one measurement against a speedtest.net server.
type SpeedResult struct {
	Server      string
	Latency     time.Duration
	DownloadBps float64
	UploadBps   float64
}

// SpeedTester measures latency, download and upload against the nearest server.
type SpeedTester interface {
	Test(ctx context.Context) (SpeedResult, error)
}

// SpeedtestNet runs measurements with the speedtest.net server list.
type SpeedtestNet struct{}

func (SpeedtestNet) Test(ctx context.Context) (SpeedResult, error) {
	client := speedtest.New()
	servers, err := client.FetchServerListContext(ctx)
	if err != nil {
		return SpeedResult{}, fmt.Errorf("fetch server list: %w", err)
	}
	targets, err := servers.FindServer(nil)
	if err != nil {
		return SpeedResult{}, fmt.Errorf("find server: %w", err)
	}
	if len(targets) == 0 {
		return SpeedResult{}, errors.New("find server: none available")
	}

	s := targets[0]
	if err := s.PingTestContext(ctx, nil); err != nil {
		return SpeedResult{}, fmt.Errorf("ping %s: %w", s.Name, err)
	}
	if err := s.DownloadTestContext(ctx); err != nil {
		return SpeedResult{}, fmt.Errorf("download from %s: %w", s.Name, err)
	}
	if err := s.UploadTestContext(ctx); err != nil {
		return SpeedResult{}, fmt.Errorf("upload to %s: %w", s.Name, err)
	}
	return SpeedResult{
		Server:      s.Name,
		Latency:     s.Latency,
		DownloadBps: s.DLSpeed.Mbps() * 1e6,
		UploadBps:   s.ULSpeed.Mbps() * 1e6,
	}, nil
}

// SpeedCheck passes when download, upload and latency all meet their limits.
type SpeedCheck struct {
	Tester      SpeedTester // nil uses SpeedtestNet
	MinDownload float64
	MinUpload   float64
	MaxLatency  time.Duration
}

func (c *SpeedCheck) Name() string   { return "speedtest" }
func (c *SpeedCheck) Target() Target { return External }

func (c *SpeedCheck) Run(ctx context.Context) Result {
	tester := c.Tester
	if tester == nil {
		tester = SpeedtestNet{}
	}
	ctx, cancel := context.WithTimeout(ctx, SpeedTimeout)
	defer cancel()

	res, err := tester.Test(ctx)
	if err != nil {
		return failed(fmt.Errorf("speedtest: %w", err))
	}

	detail := fmt.Sprintf("down %.1f Mbit/s, up %.1f Mbit/s, latency %s, %s",
		res.DownloadBps/1e6, res.UploadBps/1e6, res.Latency.Round(time.Millisecond), res.Server)

	var slow []string
	if res.DownloadBps < c.MinDownload {
		slow = append(slow, "download")
	}
	if res.UploadBps < c.MinUpload {
		slow = append(slow, "upload")
	}
	if c.MaxLatency > 0 && res.Latency > c.MaxLatency {
		slow = append(slow, "latency")
	}
	if len(slow) > 0 {
		return Result{
			Latency: res.Latency,
			Err:     fmt.Errorf("%w: %s", ErrSlow, strings.Join(slow, ", ")),
			Detail:  detail,
		}
	}
	return Result{OK: true, Latency: res.Latency, Detail: detail}
}
