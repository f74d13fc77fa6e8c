// Package bridge republishes received limelight messages to MQTT broker.
// Payload is exact wire encoding of the message.
package bridge

import (
	"expvar"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
	tele_config "github.com/temoto/limelight/tele/config"
	telenet "github.com/temoto/limelight/tele/net"
)

type NewClientFunc = func(*mqtt.ClientOptions) mqtt.Client

type Bridge struct {
	config tele_config.MqttConfig
	log    *log2.Log
	m      mqtt.Client
	mopt   *mqtt.ClientOptions
	stat   Stat
}

type Stat struct {
	Published expvar.Int
	Failed    expvar.Int
	Skipped   expvar.Int
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"published":%d,"failed":%d,"skipped":%d}`,
		s.Published.Value(), s.Failed.Value(), s.Skipped.Value())
}

// newClient=nil uses paho client.
func New(log *log2.Log, config tele_config.MqttConfig, networkTimeout time.Duration, newClient NewClientFunc) *Bridge {
	if newClient == nil {
		newClient = mqtt.NewClient
	}
	mqttLog := log.Clone(log2.LDebug)
	mqttLog.SetPrefix("mqtt: ")
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if config.LogDebug {
		mqtt.DEBUG = mqttLog
	}

	if networkTimeout < 1*time.Second {
		networkTimeout = 1 * time.Second
	}
	connectTimeout := networkTimeout * 3
	b := &Bridge{
		config: config,
		log:    log,
	}
	b.mopt = mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetClientID(config.ClientID).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(networkTimeout).
		SetMaxReconnectInterval(connectTimeout).
		SetOrderMatters(false).
		SetPingTimeout(networkTimeout).
		SetWriteTimeout(networkTimeout)
	b.m = newClient(b.mopt)
	return b
}

func (b *Bridge) Start() error {
	b.log.Debugf("mqtt connect broker=%s client_id=%s", b.config.Broker, b.config.ClientID)
	return b.tokenWait(b.m.Connect(), "connect")
}

func (b *Bridge) Close() {
	if b.m.IsConnected() {
		b.m.Disconnect(uint(b.config.Timeout() / time.Millisecond))
	}
}

func (b *Bridge) Stat() *Stat { return &b.stat }

// OnMessage fits telenet.ServerOptions.OnMessage.
// Publish errors are logged and counted, never returned.
func (b *Bridge) OnMessage(conn telenet.Conn, m limelight.Message) error {
	if m.Tag() == limelight.TagHeartbeat && !b.config.Heartbeat {
		b.stat.Skipped.Add(1)
		return nil
	}
	payload, err := limelight.Encode(m)
	if err != nil {
		b.stat.Failed.Add(1)
		b.log.Errorf("mqtt encode m=%s err=%v", m.String(), err)
		return nil
	}
	topic := b.Topic(conn, m)
	if err = b.tokenWait(b.m.Publish(topic, byte(b.config.Qos), false, payload), "publish "+topic); err != nil {
		b.stat.Failed.Add(1)
		return nil
	}
	b.stat.Published.Add(1)
	return nil
}

// Telemetry: <prefix>/board<N>/telemetry
// Valve, Heartbeat: <prefix>/<conn>/valve, <conn> is board<N> when known.
func (b *Bridge) Topic(conn telenet.Conn, m limelight.Message) string {
	if t, ok := m.(limelight.Telemetry); ok {
		return fmt.Sprintf("%s/board%d/telemetry", b.config.TopicPrefix, t.Board())
	}
	return fmt.Sprintf("%s/%s/%s", b.config.TopicPrefix, connTopic(conn), m.Tag().String())
}

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

func connTopic(conn telenet.Conn) string {
	if conn == nil {
		return "unknown"
	}
	if board, ok := conn.Board(); ok {
		return fmt.Sprintf("board%d", board)
	}
	addr := conn.RemoteAddr()
	if addr == nil || addr.String() == "" {
		return "unknown"
	}
	return "remote-" + topicReplacer.Replace(addr.String())
}

func (b *Bridge) tokenWait(t mqtt.Token, tag string) error {
	if !t.WaitTimeout(b.config.Timeout()) {
		err := errors.Timeoutf("mqtt %s", tag)
		b.log.Error(err)
		return err
	}
	if err := t.Error(); err != nil {
		err = errors.Annotatef(err, "mqtt %s", tag)
		b.log.Error(err)
		return err
	}
	return nil
}
