// Package mqttpub publishes wifi-cmd status lines to an MQTT broker so
// remote test tooling can follow a device.
package mqttpub

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

// DefaultTopic is the topic used when Config.Topic is empty.
const DefaultTopic = "wificmd/status"

const maxLine = 512

var errClosed = errors.New("mqttpub: publisher closed")

// Client publishes a payload. *mqtt.Client implements it.
type Client interface {
	PublishPayload(flags mqtt.PacketFlags, vp mqtt.VariablesPublish, payload []byte) error
}

// Config configures a Publisher.
type Config struct {
	Topic  string
	Logger *slog.Logger
	// Retain marks every published line as retained by the broker.
	Retain bool
}

// Publisher is an io.Writer publishing each complete line as one message.
// Lines longer than an internal limit are split.
type Publisher struct {
	mu     sync.Mutex
	client Client
	flags  mqtt.PacketFlags
	vp     mqtt.VariablesPublish
	logger *slog.Logger
	line   []byte
	closer io.Closer
	closed bool
}

var _ io.WriteCloser = (*Publisher)(nil)

// New returns a Publisher over an already connected client.
func New(client Client, cfg Config) (*Publisher, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	flags, err := mqtt.NewPublishFlags(mqtt.QoS0, false, cfg.Retain)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		client: client,
		flags:  flags,
		vp:     mqtt.VariablesPublish{TopicName: []byte(topic)},
		logger: cfg.Logger,
		line:   make([]byte, 0, maxLine),
	}, nil
}

// Dial connects to the broker at addr, a host:port pair, and returns a
// Publisher for it. The connection is serviced in the background until Close.
func Dial(ctx context.Context, addr, clientID string, cfg Config) (*Publisher, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			return nil
		},
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(clientID))
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Connect(cctx, conn, &varconn); err != nil {
		conn.Close()
		return nil, err
	}
	p, err := New(client, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.closer = conn
	go func() {
		for client.IsConnected() {
			err := client.HandleNext()
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				break
			} else if err != nil {
				p.debug("mqtt:handle-next", slog.String("err", err.Error()))
			}
		}
		p.debug("mqtt:disconnected", slog.Any("reason", client.Err()))
	}()
	return p, nil
}

// Write buffers p and publishes every completed line. Publish errors are
// logged and do not fail the write so status output is never interrupted.
func (p *Publisher) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errClosed
	}
	n := len(b)
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			b = p.appendPartial(b)
			continue
		}
		for seg := b[:i]; len(seg) > 0; {
			seg = p.appendPartial(seg)
		}
		b = b[i+1:]
		p.flushLocked()
	}
	return n, nil
}

// appendPartial buffers data without a newline, publishing full chunks.
func (p *Publisher) appendPartial(b []byte) []byte {
	room := maxLine - len(p.line)
	if len(b) <= room {
		p.line = append(p.line, b...)
		return nil
	}
	p.line = append(p.line, b[:room]...)
	p.flushLocked()
	return b[room:]
}

func (p *Publisher) flushLocked() {
	payload := bytes.TrimSuffix(p.line, []byte{'\r'})
	p.vp.PacketIdentifier++
	if err := p.client.PublishPayload(p.flags, p.vp, payload); err != nil {
		p.logerr("mqtt:publish", slog.String("err", err.Error()))
	}
	p.line = p.line[:0]
}

// Close publishes any buffered partial line and closes the broker
// connection opened by Dial.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	if len(p.line) > 0 {
		p.flushLocked()
	}
	p.closed = true
	if p.closer != nil {
		return p.closer.Close()
	}
	return nil
}

func (p *Publisher) debug(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
	}
}

func (p *Publisher) logerr(msg string, attrs ...slog.Attr) {
	if p.logger != nil {
		p.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
	}
}
