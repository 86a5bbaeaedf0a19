package client

import (
	"context"
	"io"
	"net/http"

	"github.com/coder/websocket"
)

// defaultReadLimit caps the size of a reassembled frame.
const defaultReadLimit = 1 << 20

// Transport is one open push-channel connection.
type Transport interface {
	// Write sends a text frame.
	Write(ctx context.Context, payload []byte) error
	// Reader returns the next text message. The reader yields io.EOF at the
	// end of the message.
	Reader(ctx context.Context) (io.Reader, error)
	// Close tears the connection down.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebSocketDialer dials with coder/websocket.
type WebSocketDialer struct {
	// HTTPClient is used for the opening handshake; nil selects http.DefaultClient.
	HTTPClient *http.Client
	// ReadLimit caps the message size; zero selects 1 MiB.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		return nil, err
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)
	return &socketTransport{conn: conn}, nil
}

type socketTransport struct {
	conn *websocket.Conn
}

func (t *socketTransport) Write(ctx context.Context, payload []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, payload)
}

func (t *socketTransport) Reader(ctx context.Context) (io.Reader, error) {
	for {
		typ, r, err := t.conn.Reader(ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return r, nil
		}
		// Binary frames are not part of the protocol.
		if _, err := io.Copy(io.Discard, r); err != nil {
			return nil, err
		}
	}
}

func (t *socketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "client closing")
}
