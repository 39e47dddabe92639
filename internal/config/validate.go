package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if !strings.HasSuffix(strings.ToLower(c.Paths.ReportFile), ".xlsx") {
		return errors.New("paths.report_file must point to an .xlsx workbook")
	}
	if c.Paths.APIBind != "" && !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind %q must be host:port", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateCamera() error {
	if strings.Count(c.Camera.DevicePattern, "%d") != 1 {
		return errors.New("camera.device_pattern must contain exactly one %d")
	}
	if err := ensurePositiveMap(map[string]int{
		"camera.width":                c.Camera.Width,
		"camera.height":               c.Camera.Height,
		"camera.join_timeout_seconds": c.Camera.JoinTimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.RolloverInterval <= 0 {
		return errors.New("workflow.rollover_interval must be positive (seconds)")
	}
	if c.Workflow.BackupRetentionDays < 0 {
		return errors.New("workflow.backup_retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive when notifications.ntfy_topic is set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
