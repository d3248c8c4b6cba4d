package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"foodvision/internal/logger"
	"foodvision/internal/models"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

const (
	defaultRemoteTimeout = 5 * time.Second
	remoteJPEGQuality    = 85
)

// RemoteClassifier sends each frame as a JPEG binary message over a
// websocket and reads back one JSON array of predictions. A failed
// exchange drops the connection; the next Predict redials.
type RemoteClassifier struct {
	serverURL string
	timeout   time.Duration
	dialer    *websocket.Dialer
	log       logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRemote dials url once so a wrong address fails at load time.
func NewRemote(ctx context.Context, url string) (*RemoteClassifier, error) {
	c := &RemoteClassifier{
		serverURL: url,
		timeout:   defaultRemoteTimeout,
		dialer:    websocket.DefaultDialer,
		log:       logger.Named("remote-classifier"),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *RemoteClassifier) connect(ctx context.Context) error {
	c.log.Info(ctx, "connecting to classifier server", logger.String("url", c.serverURL))

	conn, _, err := c.dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.serverURL, err)
	}

	c.conn = conn
	c.log.Info(ctx, "connected to classifier server")
	return nil
}

func (c *RemoteClassifier) Predict(ctx context.Context, img image.Image) ([]models.Prediction, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(remoteJPEGQuality)); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return nil, err
		}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		// Unblocks a pending read; the exchange then fails and drops the conn.
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	preds, err := c.exchange(buf.Bytes(), deadline)
	if err != nil {
		c.log.Warn(ctx, "connection lost", logger.Error(err))
		_ = c.conn.Close()
		c.conn = nil
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return preds, nil
}

func (c *RemoteClassifier) exchange(frame []byte, deadline time.Time) ([]models.Prediction, error) {
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}

	var preds []models.Prediction
	if err := json.Unmarshal(message, &preds); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	return preds, nil
}

func (c *RemoteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
