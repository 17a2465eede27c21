// Package spjs talks to a Serial Port JSON Server, which exposes the serial
// ports of a remote host over a websocket.
package spjs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned for writes on a closed Client.
var ErrClosed = errors.New("spjs client closed")

type Client struct {
	url string
	log *zap.Logger

	outgoing  chan message
	incomming chan interface{}

	closeOnce sync.Once
	closeCh   chan struct{}
}

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}
type SerialPortList struct {
	SerialPorts []SerialPort
}
type SerialPort struct {
	Name         string
	Friendly     string
	SerialNumber string
	IsOpen       bool
	Baud         int
	USBVID       string
	USBPID       string
}

// NewClient starts a client that stays connected to url until closed.
func NewClient(url string, log *zap.Logger) *Client {
	c := &Client{
		url:       url,
		log:       log.With(zap.String("component", "spjs"), zap.String("url", url)),
		outgoing:  make(chan message, 1000),
		incomming: make(chan interface{}, 1000),
		closeCh:   make(chan struct{}),
	}

	go c.loop()

	return c
}

// Messages returns parsed messages from the server: *DataFrame, *CmdStatus,
// *SerialPortList or *ErrorMessage.
func (c *Client) Messages() <-chan interface{} {
	return c.incomming
}

func parseMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Cmd", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Warn("read failed", zap.Error(err))
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			c.log.Warn("bad message", zap.Error(err))
			continue
		}
		val, err := parseMessage(data, msg)
		if err != nil {
			c.log.Debug("ignoring message", zap.Error(err))
			continue
		}
		select {
		case c.incomming <- val:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) loop() {
	var nextUp message

reconnect:
	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.log.Info("connecting")
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Warn("connect failed", zap.Error(err))
			select {
			case <-c.closeCh:
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		c.log.Info("connected")
		ch := make(chan struct{})
		go c.readLoop(ws, ch)

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					c.log.Warn("send failed", zap.Error(err))
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-c.closeCh:
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				ws.Close()
				return
			case <-ch:
				ws.Close()
				continue reconnect
			case nextUp = <-c.outgoing:
			}
		}
	}
}

type JSON struct {
	Port string `json:"P"`
	Data []Data
}
type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

// WriteString sends a raw server command and waits until it has been written.
func (c *Client) WriteString(ctx context.Context, data string) error {
	return c.send(ctx, []byte(data))
}

// SendJSON queues data for a port using the sendjson command.
func (c *Client) SendJSON(ctx context.Context, v JSON) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.send(ctx, append([]byte("sendjson "), data...))
}

func (c *Client) send(ctx context.Context, payload []byte) error {
	ch := make(chan struct{})
	select {
	case c.outgoing <- message{done: ch, payload: payload}:
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ch:
		return nil
	case <-c.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List asks the server for its serial ports.
//
// Other messages received while waiting are dropped.
func (c *Client) List(ctx context.Context) ([]SerialPort, error) {
	err := c.WriteString(ctx, "list")
	if err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closeCh:
			return nil, ErrClosed
		case msg := <-c.incomming:
			if l, ok := msg.(*SerialPortList); ok {
				return l.SerialPorts, nil
			}
		}
	}
}

// Close disconnects from the server. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	return nil
}
