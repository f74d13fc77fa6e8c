package bridge

import (
	"net"
	"testing"
	"time"

	"github.com/256dpi/gomqtt/packet"
	"github.com/256dpi/gomqtt/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/limelight/limelight"
	"github.com/temoto/limelight/log2"
	tele_config "github.com/temoto/limelight/tele/config"
)

// Minimal broker: accepts one client, acks connect and publish, forwards messages to channel.
func testBroker(t testing.TB, a *alive.Alive, timeout time.Duration) (string, <-chan packet.Message) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	require.NoError(t, err)
	ch := make(chan packet.Message, 16)
	a.Add(1)
	go func() {
		defer a.Done()
		defer close(ch)
		go func() {
			<-a.StopChan()
			_ = ln.Close()
		}()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(timeout))
		b := transport.NewNetConn(conn)
		for a.IsRunning() {
			pkt, err := b.Receive()
			if err != nil {
				return
			}
			switch p := pkt.(type) {
			case *packet.Connect:
				connack := packet.NewConnack()
				connack.ReturnCode = packet.ConnectionAccepted
				if b.Send(connack, false) != nil {
					return
				}
			case *packet.Publish:
				ch <- p.Message
				if p.Message.QOS == packet.QOSAtLeastOnce {
					puback := packet.NewPuback()
					puback.ID = p.ID
					if b.Send(puback, false) != nil {
						return
					}
				}
			case *packet.Pingreq:
				if b.Send(packet.NewPingresp(), false) != nil {
					return
				}
			case *packet.Disconnect:
				return
			}
		}
	}()
	return "tcp://" + ln.Addr().String(), ch
}

func TestBridgePahoBroker(t *testing.T) {
	const timeout = 5 * time.Second
	a := alive.NewAlive()
	defer a.Wait()
	defer a.Stop()
	url, ch := testBroker(t, a, timeout)

	config := tele_config.MqttConfig{
		Enabled:     true,
		Broker:      url,
		ClientID:    "limelight-test",
		TopicPrefix: "bench",
		Qos:         1,
	}
	b := New(log2.NewStderr(log2.LError), config, timeout, nil) // paho goroutines may outlive test
	require.NoError(t, b.Start())
	defer b.Close()

	conn := testConn(t)
	conn.SetBoard(limelight.BoardBay2)
	tm, err := limelight.NewTelemetry(limelight.BoardBay2, 99, make([]float32, limelight.BayBoardValues))
	require.NoError(t, err)
	require.NoError(t, b.OnMessage(conn, tm))
	require.NoError(t, b.OnMessage(conn, limelight.NewValve(3, 4)))

	expect := []struct {
		topic string
		size  int
	}{{"bench/board2/telemetry", 218}, {"bench/board2/valve", 9}}
	for _, e := range expect {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "broker closed")
			assert.Equal(t, e.topic, msg.Topic)
			assert.Equal(t, e.size, len(msg.Payload))
			assert.Equal(t, packet.QOSAtLeastOnce, msg.QOS)
		case <-time.After(timeout):
			t.Fatalf("broker did not receive %s", e.topic)
		}
	}
	assert.Equal(t, int64(2), b.Stat().Published.Value())
}
