package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ResetResult summarizes a Reset.
type ResetResult struct {
	Restarted []string `json:"restarted"`
	Failed    []string `json:"failed,omitempty"`

	// StopFailed lists plugins whose stop hook failed. They were still
	// restarted and also appear in Restarted or Failed.
	StopFailed []string `json:"stop_failed,omitempty"`
}

// Reset restarts every active plugin in start order so each one re-reads its
// configuration and reapplies its patches and CSS. A plugin that fails to
// come back stays registered; the rest are still reset. The returned error
// carries every stop and start failure.
func (m *Manager) Reset(ctx context.Context) (ResetResult, error) {
	names := m.Active()

	m.logger.Info("Executing reset on all active plugins", zap.Int("plugin_count", len(names)))

	var (
		result ResetResult
		errs   error
	)
	for _, name := range names {
		// Stop always leaves the plugin registered, so it is restarted even
		// when its stop hook failed.
		if err := m.Stop(ctx, name); err != nil {
			result.StopFailed = append(result.StopFailed, name)
			errs = multierr.Append(errs, fmt.Errorf("reset %s: %w", name, err))
		}

		if err := m.Start(ctx, name); err != nil || !m.IsActive(name) {
			m.logger.Error("Failed to reset plugin",
				zap.String("plugin", name),
				zap.Error(err))
			result.Failed = append(result.Failed, name)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reset %s: %w", name, err))
			}
			continue
		}
		result.Restarted = append(result.Restarted, name)
	}

	m.logger.Info("Reset complete",
		zap.Int("success", len(result.Restarted)),
		zap.Int("errors", len(result.Failed)),
		zap.Int("total", len(names)))
	return result, errs
}
