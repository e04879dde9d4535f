package kafka

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"

	"pybake/sink"
)

func TestDriver_PublishEncodesEvent(t *testing.T) {
	sc := mocks.NewTestConfig()
	sc.Producer.Return.Successes = true
	mp := mocks.NewAsyncProducer(t, sc)
	mp.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]any
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["request_id"] != "req-1" || got["status"] != "partial" {
			return fmt.Errorf("unexpected payload %s", val)
		}
		return nil
	})

	d := &driver{}
	d.bind(Config{Topic: "pybake.runs"}, mp)

	ev := &sink.Event{
		RequestID:     "req-1",
		Mode:          "compile",
		Status:        "partial",
		Artifacts:     []string{"good.so"},
		FailedTargets: []string{"bad.py"},
		Duration:      1500 * time.Millisecond,
		At:            time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := d.Publish(ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-mp.Successes():
		if msg.Topic != "pybake.runs" {
			t.Fatalf("topic: %q", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "req-1" {
			t.Fatalf("key: %q", key)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no success from mock producer")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDriver_ConfigureRejectsWrongType(t *testing.T) {
	d := &driver{}
	if err := d.Configure("nope"); err == nil {
		t.Fatal("expected type error")
	}
	if err := d.Configure(Config{}); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestDriver_PublishUnconfigured(t *testing.T) {
	d := &driver{}
	if err := d.Publish(&sink.Event{}); err == nil {
		t.Fatal("expected error from unconfigured driver")
	}
}

func TestRegistered(t *testing.T) {
	a, err := sink.NewAdapter("kafka")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if _, ok := a.(*driver); !ok {
		t.Fatalf("unexpected adapter %T", a)
	}
}
