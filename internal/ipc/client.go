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

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Narthex.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Narthex.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Narthex.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns queue items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{Statuses: statuses}
	if err := c.client.Call("Narthex.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd enqueues a capture from a local image path.
func (c *Client) QueueAdd(req QueueAddRequest) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.client.Call("Narthex.QueueAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single queue item.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	req := QueueDescribeRequest{ID: id}
	if err := c.client.Call("Narthex.QueueDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove deletes one capture.
func (c *Client) QueueRemove(id int64) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	req := QueueRemoveRequest{ID: id}
	if err := c.client.Call("Narthex.QueueRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes all items from the queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Narthex.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes settled items from the queue.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.client.Call("Narthex.QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearFailed removes failed items from the queue.
func (c *Client) QueueClearFailed() (*QueueClearFailedResponse, error) {
	var resp QueueClearFailedResponse
	if err := c.client.Call("Narthex.QueueClearFailed", QueueClearFailedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueReset rolls in-flight captures back to the start of their stage.
func (c *Client) QueueReset() (*QueueResetResponse, error) {
	var resp QueueResetResponse
	if err := c.client.Call("Narthex.QueueReset", QueueResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry retries failed and duplicate items.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	req := QueueRetryRequest{IDs: ids}
	if err := c.client.Call("Narthex.QueueRetry", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns queue diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.client.Call("Narthex.QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Narthex.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionStatus retrieves the intake session state.
func (c *Client) SessionStatus() (*SessionStatusResponse, error) {
	var resp SessionStatusResponse
	if err := c.client.Call("Narthex.SessionStatus", SessionStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionResume adopts leftover captures into the current session.
func (c *Client) SessionResume() (*SessionResumeResponse, error) {
	var resp SessionResumeResponse
	if err := c.client.Call("Narthex.SessionResume", SessionResumeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SessionDiscard deletes leftover captures from earlier sessions.
func (c *Client) SessionDiscard() (*SessionDiscardResponse, error) {
	var resp SessionDiscardResponse
	if err := c.client.Call("Narthex.SessionDiscard", SessionDiscardRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchList lists card batches for an organization.
func (c *Client) BatchList(orgID string) (*BatchListResponse, error) {
	var resp BatchListResponse
	req := BatchListRequest{OrgID: orgID}
	if err := c.client.Call("Narthex.BatchList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchCards lists the cards inside one batch.
func (c *Client) BatchCards(orgID string, batchID int64) (*BatchCardsResponse, error) {
	var resp BatchCardsResponse
	req := BatchCardsRequest{OrgID: orgID, BatchID: batchID}
	if err := c.client.Call("Narthex.BatchCards", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CardReview marks a card reviewed.
func (c *Client) CardReview(orgID string, cardID int64) (*CardReviewResponse, error) {
	var resp CardReviewResponse
	req := CardReviewRequest{OrgID: orgID, CardID: cardID}
	if err := c.client.Call("Narthex.CardReview", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CardDelete removes a card.
func (c *Client) CardDelete(orgID string, cardID int64) (*CardDeleteResponse, error) {
	var resp CardDeleteResponse
	req := CardDeleteRequest{OrgID: orgID, CardID: cardID}
	if err := c.client.Call("Narthex.CardDelete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanTokenCreate mints a phone hand-off token.
func (c *Client) ScanTokenCreate(orgID, userID string) (*ScanTokenCreateResponse, error) {
	var resp ScanTokenCreateResponse
	req := ScanTokenCreateRequest{OrgID: orgID, UserID: userID}
	if err := c.client.Call("Narthex.ScanTokenCreate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Narthex.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
