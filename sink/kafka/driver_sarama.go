package kafka

import (
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"pybake/internal/logging"
	"pybake/sink"
)

type Config struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
	Acks    int16    `koanf:"required_acks"` // 0,1,-1
	Version string   `koanf:"version"`
}

type driver struct {
	cfg  Config
	p    sarama.AsyncProducer
	once sync.Once
	done chan struct{}
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("kafka-sink: no brokers configured")
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Errors = true
	if cfg.Version != "" {
		ver, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return err
		}
		sc.Version = ver
	}
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	d.bind(cfg, p)
	return nil
}

// bind attaches an already built producer; tests pass a mock here.
func (d *driver) bind(cfg Config, p sarama.AsyncProducer) {
	d.cfg, d.p = cfg, p
	d.done = make(chan struct{})
	go d.drainErrors()
}

func (d *driver) drainErrors() {
	defer close(d.done)
	for perr := range d.p.Errors() {
		logging.L().Warn("kafka-sink: produce failed", "topic", d.cfg.Topic, "err", perr.Err)
	}
}

func (d *driver) Publish(ev *sink.Event) error {
	if d.p == nil {
		return fmt.Errorf("kafka-sink: not configured")
	}
	val, err := sink.Encode(ev)
	if err != nil {
		return err
	}
	d.p.Input() <- &sarama.ProducerMessage{
		Topic:     d.cfg.Topic,
		Key:       sarama.StringEncoder(ev.RequestID),
		Value:     sarama.ByteEncoder(val),
		Timestamp: ev.At,
		Headers: []sarama.RecordHeader{
			{Key: []byte("status"), Value: []byte(ev.Status)},
		},
	}
	return nil
}

func (d *driver) Close() error {
	var err error
	d.once.Do(func() {
		if d.p == nil {
			return
		}
		err = d.p.Close()
		<-d.done
	})
	return err
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
