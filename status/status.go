package status

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mogaika/armature_poser/armature"
)

const (
	INFO = iota
	ERROR
	CHANGE
)

type status struct {
	Message  string
	Time     time.Time
	Type     int
	Change   string            `json:",omitempty"`
	Mode     string            `json:",omitempty"`
	Bones    []armature.BoneID `json:",omitempty"`
	Warnings []string          `json:",omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump only watches for the peer going away.
func (c *client) readPump() {
	defer func() {
		globalLock.Lock()
		if broadcastList[c] {
			delete(broadcastList, c)
			close(c.send)
		}
		globalLock.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NewClient starts streaming status messages to conn, beginning with the
// last one sent.
func NewClient(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 32)}
	globalLock.Lock()
	broadcastList[c] = true
	if lastMessage != nil {
		c.send <- lastMessage
	}
	globalLock.Unlock()
	go c.writePump()
	go c.readPump()
}

var statusBroadcast chan *status
var broadcastList map[*client]bool
var globalLock sync.Mutex
var lastMessage []byte

func unregisterClient(c *client) {
	globalLock.Lock()
	defer globalLock.Unlock()
	delete(broadcastList, c)
}

func init() {
	statusBroadcast = make(chan *status, 16)
	broadcastList = make(map[*client]bool)
	go func() {
		for s := range statusBroadcast {
			data, err := json.Marshal(s)
			if err != nil {
				log.Printf("[status] marshal error: %v", err)
				continue
			}
			globalLock.Lock()
			lastMessage = data
			for c := range broadcastList {
				select {
				case c.send <- data:
				default:
					log.Printf("[status] client %v is too slow, dropping message", c.conn.RemoteAddr())
				}
			}
			globalLock.Unlock()
		}
	}()
}

func send(s *status) {
	s.Time = time.Now()
	statusBroadcast <- s
}

func Info(format string, a ...interface{}) {
	send(&status{Message: fmt.Sprintf(format, a...), Type: INFO})
}

func Error(format string, a ...interface{}) {
	send(&status{Message: fmt.Sprintf(format, a...), Type: ERROR})
}

// ArmatureChanged is an armature.ChangeHook forwarding every change to the
// connected clients.
func ArmatureChanged(a *armature.Armature, ev armature.ChangeEvent) {
	s := &status{
		Message: fmt.Sprintf("%s: %v changed", a.Name, ev.Kind),
		Type:    CHANGE,
		Change:  ev.Kind.String(),
		Mode:    ev.Mode.String(),
		Bones:   ev.Bones,
	}
	for _, w := range ev.Warnings {
		s.Warnings = append(s.Warnings, w.Error())
	}
	send(s)
}
