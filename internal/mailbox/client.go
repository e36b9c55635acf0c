// Package mailbox connects to the inbound IMAP account, lists message
// UIDs past a watermark, and fetches and normalizes full messages.
// UIDs are the resumption key: unlike sequence numbers they are stable
// per message, so the cursor survives mailbox changes between batches.
package mailbox

import (
	"context"
	"fmt"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Client holds the IMAP connection settings.
type Client struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	mailbox  string
}

// NewClient creates a new IMAP client configuration.
func NewClient(host, port, username, password string, useTLS bool, mailbox string) *Client {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      useTLS,
		mailbox:  mailbox,
	}
}

// Dial connects, authenticates, and selects the mailbox, returning a
// Session scoped to one ingestion batch. The caller must Close it.
// Any failure here is fatal to the batch and leaves the cursor alone.
func (c *Client) Dial(_ context.Context) (*Session, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authenticating %s: %w", c.username, err)
	}

	if _, err := client.Select(c.mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", c.mailbox, err)
	}

	return &Session{client: client}, nil
}

// Session is an authenticated IMAP connection with the mailbox
// selected.
type Session struct {
	client *imapclient.Client
}

// Close logs out and disconnects.
func (s *Session) Close() error {
	return s.client.Logout().Wait()
}

// ListAfter returns the UIDs of all messages strictly greater than the
// watermark, in ascending order. Servers answer a `n:*` range with at
// least the last message even when nothing is newer, so results are
// filtered against the watermark again client-side.
func (s *Session) ListAfter(_ context.Context, watermark uint32) ([]uint32, error) {
	var set imap.UIDSet
	set.AddRange(imap.UID(watermark+1), 0)

	criteria := &imap.SearchCriteria{
		UID: []imap.UIDSet{set},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching after UID %d: %w", watermark, err)
	}

	var uids []uint32
	for _, uid := range searchData.AllUIDs() {
		if uint32(uid) > watermark {
			uids = append(uids, uint32(uid))
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return uids, nil
}

// Fetch retrieves the full message for the given UID and normalizes it
// into plain subject/sender/body text.
func (s *Session) Fetch(_ context.Context, uid uint32) (*Message, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message UID %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body section", uid)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch for UID %d: %w", uid, err)
	}

	parsed := Normalize(uid, raw)
	return &parsed, nil
}
