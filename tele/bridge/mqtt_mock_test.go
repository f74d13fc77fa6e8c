package bridge

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

type mockMsg struct {
	topic   string
	qos     byte
	payload []byte
}

type mqttMock struct {
	sync.Mutex
	opt        *mqtt.ClientOptions
	pub        []mockMsg
	connected  bool
	connectErr error
	publishErr error
}

func (self *mqttMock) new(opt *mqtt.ClientOptions) mqtt.Client {
	self.opt = opt
	return self
}

func (self *mqttMock) published() []mockMsg {
	self.Lock()
	defer self.Unlock()
	return append([]mockMsg(nil), self.pub...)
}

func (self *mqttMock) Disconnect(uint) {
	self.Lock()
	self.connected = false
	self.Unlock()
}
func (self *mqttMock) IsConnected() bool {
	self.Lock()
	defer self.Unlock()
	return self.connected
}
func (self *mqttMock) IsConnectionOpen() bool { return self.IsConnected() }

func (self *mqttMock) Connect() mqtt.Token {
	self.Lock()
	defer self.Unlock()
	if self.connectErr == nil {
		self.connected = true
	}
	return mockToken{self.connectErr}
}

func (self *mqttMock) Publish(topic string, qos byte, retain bool, payload interface{}) mqtt.Token {
	self.Lock()
	defer self.Unlock()
	if self.publishErr != nil {
		return mockToken{self.publishErr}
	}
	self.pub = append(self.pub, mockMsg{topic: topic, qos: qos, payload: payload.([]byte)})
	return mockToken{nil}
}

func (self *mqttMock) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (self *mqttMock) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (self *mqttMock) Unsubscribe(...string) mqtt.Token      { panic("not implemented") }
func (self *mqttMock) AddRoute(string, mqtt.MessageHandler) { panic("not implemented") }
func (self *mqttMock) OptionsReader() mqtt.ClientOptionsReader {
	panic("not implemented")
}

type mockToken struct{ error }

func (tok mockToken) Error() error { return tok.error }
func (tok mockToken) Wait() bool   { return !errors.IsTimeout(tok.error) }
func (tok mockToken) WaitTimeout(time.Duration) bool {
	return !errors.IsTimeout(tok.error)
}
