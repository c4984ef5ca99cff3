package scanner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"go.uber.org/zap"

	"github.com/llehouerou/shelf/internal/config"
)

// settingLastLaunchScan stores the Unix time of the last launch scan.
const settingLastLaunchScan = "last_launch_scan"

// Run applies the auto-scan policy until ctx is done: an optional launch
// scan, periodic scans, and the filesystem watch when enabled.
func (s *Scanner) Run(ctx context.Context) error {
	if err := s.launchScan(ctx); err != nil && !s.ignorable(ctx, err) {
		s.logger.Error("launch scan failed", zap.Error(err))
	}

	var wg sync.WaitGroup
	if s.cfg.AutoScan == config.AutoScanPeriodic {
		wg.Go(func() { s.periodic(ctx) })
	}
	if s.cfg.Watch {
		wg.Go(func() {
			if err := s.Watch(ctx); err != nil {
				s.logger.Error("folder watch stopped", zap.Error(err))
			}
		})
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// ignorable reports errors that only mean a scan did not happen.
func (s *Scanner) ignorable(ctx context.Context, err error) bool {
	return errors.Is(err, ErrAlreadyScanning) || ctx.Err() != nil
}

// shouldScanOnLaunch applies the launch part of the auto-scan policy.
// launch_once scans when no launch scan was recorded since the host booted.
func (s *Scanner) shouldScanOnLaunch(ctx context.Context) (bool, error) {
	switch s.cfg.AutoScan {
	case config.AutoScanNever:
		return false, nil
	case config.AutoScanLaunchAlways, config.AutoScanPeriodic:
		return true, nil
	}

	value, ok, err := s.lib.Setting(ctx, settingLastLaunchScan)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	last, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return true, nil
	}

	boot, err := s.bootTime(ctx)
	if err != nil {
		s.logger.Warn("boot time unavailable", zap.Error(err))
		return true, nil
	}
	return time.Unix(last, 0).Before(boot), nil
}

func (s *Scanner) launchScan(ctx context.Context) error {
	ok, err := s.shouldScanOnLaunch(ctx)
	if err != nil || !ok {
		return err
	}
	s.logger.Debug("launch scan", zap.String("policy", s.cfg.AutoScan))
	if _, err := s.RefreshAll(ctx, false); err != nil {
		return err
	}
	return s.lib.SetSetting(ctx, settingLastLaunchScan, strconv.FormatInt(s.now().Unix(), 10))
}

func (s *Scanner) periodic(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RefreshAll(ctx, false); err != nil && !s.ignorable(ctx, err) {
				s.logger.Error("periodic scan failed", zap.Error(err))
			}
		}
	}
}

func hostBootTime(ctx context.Context) (time.Time, error) {
	secs, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0), nil //nolint:gosec // boot time fits in int64
}
