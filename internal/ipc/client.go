package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const serviceName = "Holocap"

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
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

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// RecordStart begins a capture session.
func (c *Client) RecordStart(name string) (*RecordStartResponse, error) {
	return call[RecordStartResponse](c, "RecordStart", RecordStartRequest{Name: name})
}

// RecordStop ends the active capture session.
func (c *Client) RecordStop() (*RecordStopResponse, error) {
	return call[RecordStopResponse](c, "RecordStop", RecordStopRequest{})
}

// RecordingList returns catalogue entries optionally filtered by statuses.
func (c *Client) RecordingList(statuses []string) (*RecordingListResponse, error) {
	return call[RecordingListResponse](c, "RecordingList", RecordingListRequest{Statuses: statuses})
}

// RecordingDescribe returns a single catalogue entry.
func (c *Client) RecordingDescribe(id int64) (*RecordingDescribeResponse, error) {
	return call[RecordingDescribeResponse](c, "RecordingDescribe", RecordingDescribeRequest{ID: id})
}

// RecordingImport catalogues an existing recording directory.
func (c *Client) RecordingImport(dir string) (*RecordingImportResponse, error) {
	return call[RecordingImportResponse](c, "RecordingImport", RecordingImportRequest{Dir: dir})
}

// RecordingRetry retries failed recordings.
func (c *Client) RecordingRetry(ids []int64) (*RecordingRetryResponse, error) {
	return call[RecordingRetryResponse](c, "RecordingRetry", RecordingRetryRequest{IDs: ids})
}

// RecordingSync schedules recordings for sync now.
func (c *Client) RecordingSync(ids []int64) (*RecordingSyncResponse, error) {
	return call[RecordingSyncResponse](c, "RecordingSync", RecordingSyncRequest{IDs: ids})
}

// RecordingRemove drops recordings from the catalogue.
func (c *Client) RecordingRemove(ids []int64) (*RecordingRemoveResponse, error) {
	return call[RecordingRemoveResponse](c, "RecordingRemove", RecordingRemoveRequest{IDs: ids})
}

// RecordingClear removes every catalogue entry.
func (c *Client) RecordingClear() (*RecordingClearResponse, error) {
	return call[RecordingClearResponse](c, "RecordingClear", RecordingClearRequest{})
}

// CatalogueHealth returns aggregate catalogue counts.
func (c *Client) CatalogueHealth() (*CatalogueHealthResponse, error) {
	return call[CatalogueHealthResponse](c, "CatalogueHealth", CatalogueHealthRequest{})
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}

// Preflight runs the daemon's storage and device checks.
func (c *Client) Preflight() (*PreflightResponse, error) {
	return call[PreflightResponse](c, "Preflight", PreflightRequest{})
}

// LogTail returns log events from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}
