package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"sam/internal/api"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, args any) (*Response, error) {
	var resp Response
	if err := c.client.Call(ServiceName+"."+method, args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(ServiceName+".Status", Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CameraStart opens the configured camera.
func (c *Client) CameraStart() (*Response, error) { return c.call("CameraStart", Empty{}) }

// CameraStop stops scanning.
func (c *Client) CameraStop() (*Response, error) { return c.call("CameraStop", Empty{}) }

// CameraToggle flips the camera state.
func (c *Client) CameraToggle() (*Response, error) { return c.call("CameraToggle", Empty{}) }

// ManualEntry records attendance for name.
func (c *Client) ManualEntry(name string) (*Response, error) {
	return c.call("ManualEntry", ManualEntryRequest{Name: name})
}

// Today returns today's attendance.
func (c *Client) Today() (*TodayResponse, error) {
	var resp TodayResponse
	if err := c.client.Call(ServiceName+".Today", Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Attendance returns the records of date; an empty date means today.
func (c *Client) Attendance(date string) ([]api.Record, error) {
	var resp AttendanceResponse
	if err := c.client.Call(ServiceName+".Attendance", AttendanceRequest{Date: date}, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Settings returns the current settings map.
func (c *Client) Settings() (map[string]any, error) {
	var resp SettingsResponse
	if err := c.client.Call(ServiceName+".SettingsGet", Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// SetSetting changes one key.
func (c *Client) SetSetting(key string, value any) (*Response, error) {
	return c.call("SettingsSet", SettingsSetRequest{Key: key, Value: value})
}

// UpdateSettings changes several keys atomically.
func (c *Client) UpdateSettings(values map[string]any) (*Response, error) {
	return c.call("SettingsUpdate", SettingsUpdateRequest{Values: values})
}

// ResetSettings restores defaults.
func (c *Client) ResetSettings() (*Response, error) { return c.call("SettingsReset", Empty{}) }

// ExportSettings writes a settings backup into dir.
func (c *Client) ExportSettings(dir string) (*Response, error) {
	return c.call("SettingsExport", SettingsExportRequest{Dir: dir})
}

// ImportSettings applies a settings file.
func (c *Client) ImportSettings(path string) (*Response, error) {
	return c.call("SettingsImport", SettingsImportRequest{Path: path})
}

// ReportOpen updates the workbook and opens it.
func (c *Client) ReportOpen() (*Response, error) { return c.call("ReportOpen", Empty{}) }

// ReportSync updates the workbook without opening it.
func (c *Client) ReportSync() (*Response, error) { return c.call("ReportSync", Empty{}) }

// WindowClosing tells the daemon the UI window is going away.
func (c *Client) WindowClosing() (*Response, error) { return c.call("WindowClosing", Empty{}) }

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() (*Response, error) { return c.call("Shutdown", Empty{}) }

// TestNotification sends a test push notification.
func (c *Client) TestNotification() (*Response, error) { return c.call("TestNotification", Empty{}) }
