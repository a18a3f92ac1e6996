// Package mqtt provides the light node's MQTT transport.
//
// The node holds one session to one broker, identified by a fixed client
// ID. Everything is QoS 0: commands that arrive while the session is down
// are lost, and telemetry published while it is down is dropped.
//
// The client never reconnects by itself. The session manager calls Open
// at most once per retry interval, only while the wireless link is up,
// and resubscribes to the command topic after every successful open.
//
// A Last Will of light/status=offline is registered so subscribers learn
// when the node vanishes without a clean disconnect.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, cfg.MQTT.Broker.ClientID)
//	if err := client.Open(ctx); err != nil {
//	    // retry later
//	}
//	defer client.Close()
//
//	client.Subscribe("led002", func(topic string, payload []byte) error {
//	    queue <- payload
//	    return nil
//	})
package mqtt
