package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

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
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Stop requests the daemon to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Sherpa.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Sherpa.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rooms lists active notification rooms.
func (c *Client) Rooms() (*RoomsResponse, error) {
	var resp RoomsResponse
	if err := c.client.Call("Sherpa.Rooms", RoomsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LessonList returns all stored lessons.
func (c *Client) LessonList() (*LessonListResponse, error) {
	var resp LessonListResponse
	if err := c.client.Call("Sherpa.LessonList", LessonListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LessonShow returns one lesson with its steps.
func (c *Client) LessonShow(id int64) (*LessonShowResponse, error) {
	var resp LessonShowResponse
	if err := c.client.Call("Sherpa.LessonShow", LessonShowRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheInvalidate drops cached lesson steps.
func (c *Client) CacheInvalidate(lessonID int64, all bool) (*CacheInvalidateResponse, error) {
	var resp CacheInvalidateResponse
	req := CacheInvalidateRequest{LessonID: lessonID, All: all}
	if err := c.client.Call("Sherpa.CacheInvalidate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a test popup via the daemon.
func (c *Client) TestNotification(userID string) (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	req := TestNotificationRequest{UserID: userID}
	if err := c.client.Call("Sherpa.TestNotification", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LessonImport stores a lesson with its steps.
func (c *Client) LessonImport(req LessonImportRequest) (*LessonImportResponse, error) {
	var resp LessonImportResponse
	if err := c.client.Call("Sherpa.LessonImport", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Announce publishes a step-start popup.
func (c *Client) Announce(req AnnounceRequest) (*AnnounceResponse, error) {
	var resp AnnounceResponse
	if err := c.client.Call("Sherpa.Announce", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Popup sends an ad-hoc popup.
func (c *Client) Popup(req PopupRequest) (*PopupResponse, error) {
	var resp PopupResponse
	if err := c.client.Call("Sherpa.Popup", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
