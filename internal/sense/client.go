package sense

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/banshee-data/sensevis/internal/config"
	"github.com/banshee-data/sensevis/internal/httputil"
	"github.com/banshee-data/sensevis/internal/monitoring"
	"github.com/banshee-data/sensevis/internal/occupancy"
)

// maxMessageSize bounds a single websocket frame from the service.
const maxMessageSize = 1 << 20

// ErrNoSensor is returned for an empty sensor name.
var ErrNoSensor = errors.New("sensor name is required")

// Client holds the service endpoints and the client id scheme.
type Client struct {
	HTTP           httputil.HTTPClient
	APIBaseURL     string
	WSBaseURL      string
	ClientIDPrefix string
}

// NewClient builds a Client from cfg. A nil httpClient gets one with the
// configured request timeout.
func NewClient(cfg *config.RenderConfig, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = httputil.NewClient(cfg.GetRequestTimeout())
	}
	return &Client{
		HTTP:           httpClient,
		APIBaseURL:     cfg.GetAPIBaseURL(),
		WSBaseURL:      cfg.GetWSBaseURL(),
		ClientIDPrefix: cfg.GetClientIDPrefix(),
	}
}

// ClientID is the per-sensor id sent on both the trigger and the socket.
func (c *Client) ClientID(sensor string) string {
	return c.ClientIDPrefix + "-" + sensor
}

// Trigger asks the service to publish occupancy for sensor.
func (c *Client) Trigger(ctx context.Context, sensor string) error {
	if sensor == "" {
		return ErrNoSensor
	}
	u := strings.TrimRight(c.APIBaseURL, "/") + "/api/subscribe/occupancy?" +
		url.Values{"topic": {"senseai/" + sensor + "/tx"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("X-Client-Id", c.ClientID(sensor))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("trigger %s: %w", sensor, err)
	}
	if err := httputil.CheckStatus(resp); err != nil {
		return fmt.Errorf("trigger %s: %w", sensor, err)
	}
	monitoring.Debugf("triggered %s as %s", sensor, c.ClientID(sensor))
	return nil
}

// Session is an open registration on the service socket.
type Session struct {
	conn   *websocket.Conn
	sensor string
}

// Connect registers on the socket as the sensor's client id.
func (c *Client) Connect(ctx context.Context, sensor string) (*Session, error) {
	if sensor == "" {
		return nil, ErrNoSensor
	}
	u := strings.TrimRight(c.WSBaseURL, "/") + "/ws/register?" +
		url.Values{"clientId": {c.ClientID(sensor)}}.Encode()
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", u, err)
	}
	conn.SetReadLimit(maxMessageSize)
	monitoring.Logf("Connected with Client ID: %s", c.ClientID(sensor))
	return &Session{conn: conn, sensor: sensor}, nil
}

// Next reads messages until one carries bboxes. Undecodable messages are
// logged and skipped.
func (s *Session) Next(ctx context.Context) ([]occupancy.Detection, error) {
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read from %s: %w", s.sensor, err)
		}
		dets, ok, err := ExtractCentroids(data)
		if err != nil {
			monitoring.Logf("Ignoring message from %s: %v", s.sensor, err)
			continue
		}
		if ok {
			return dets, nil
		}
	}
}

// Close ends the registration.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

// Listener receives one detection set per call.
type Listener struct {
	Client *Client
}

// Receive connects, waits for the first message with bboxes and
// disconnects.
func (l *Listener) Receive(ctx context.Context, sensor string) ([]occupancy.Detection, error) {
	s, err := l.Client.Connect(ctx, sensor)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Next(ctx)
}

// Fetch registers on the socket first, then triggers the sensor, so the
// reply cannot arrive before anyone is listening.
func (c *Client) Fetch(ctx context.Context, sensor string) ([]occupancy.Detection, error) {
	s, err := c.Connect(ctx, sensor)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := c.Trigger(ctx, sensor); err != nil {
		return nil, err
	}
	return s.Next(ctx)
}
