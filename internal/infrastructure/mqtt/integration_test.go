//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Integration tests need a broker at 127.0.0.1:1883.
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func TestIntegration_CommandAckRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "graylogic-lighting-int"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(Topics{}.AllDeviceAcks(), 1, func(topic string, _ []byte) error {
		received <- Topics{}.AckDeviceID(topic)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(Topics{}.AllDeviceAcks()) {
		t.Fatal("subscription not tracked")
	}

	if err := client.Publish(Topics{}.DeviceAck("dali", "light-int"), []byte(`{"correlation_id":"x"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case id := <-received:
		if id != "light-int" {
			t.Errorf("device id = %q, want light-int", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ack")
	}
}
