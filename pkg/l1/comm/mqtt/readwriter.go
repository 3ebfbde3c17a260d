package mqtt

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/teensy.go/pkg/l1"
)

// Topic suffixes under type/id.
const (
	CommandTopicSuffix = "/cmd"
	MessageTopicSuffix = "/msg"
)

// ReadWriter is a comm.PacketReadWriter reading one topic and writing
// another. Packets are only received while it runs.
type ReadWriter struct {
	Queue    *Queue
	SubTopic string
	PubTopic string

	packets  chan []byte
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewPacketReadWriter creates a ReadWriter, topics are set by
// WithTopics, ForConnector or ForController.
func NewPacketReadWriter(q *Queue) *ReadWriter {
	return &ReadWriter{
		Queue:   q,
		packets: make(chan []byte, 16),
		stopped: make(chan struct{}),
	}
}

// WithTopics sets the topics.
func (rw *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	rw.SubTopic, rw.PubTopic = sub, pub
	return rw
}

// ForConnector reads type/id/msg and writes type/id/cmd.
func (rw *ReadWriter) ForConnector(ref l1.ControllerRef) *ReadWriter {
	return rw.WithTopics(ref.Name()+MessageTopicSuffix, ref.Name()+CommandTopicSuffix)
}

// ForController reads type/id/cmd and writes type/id/msg.
func (rw *ReadWriter) ForController(ref l1.ControllerRef) *ReadWriter {
	return rw.WithTopics(ref.Name()+CommandTopicSuffix, ref.Name()+MessageTopicSuffix)
}

// ReadPacket returns io.EOF after Run returned.
func (rw *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case <-rw.stopped:
		return nil, io.EOF
	case pkt := <-rw.packets:
		return pkt, nil
	}
}

// WritePacket publishes and waits for the broker.
func (rw *ReadWriter) WritePacket(pkt []byte) error {
	token := rw.Queue.Pub(rw.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Run subscribes SubTopic until ctx is done.
func (rw *ReadWriter) Run(ctx context.Context) error {
	sub := rw.Queue.Sub(rw.SubTopic, func(_ string, payload []byte) {
		select {
		case rw.packets <- payload:
		case <-rw.stopped:
		}
	})
	<-ctx.Done()
	rw.stopOnce.Do(func() { close(rw.stopped) })
	if err := sub.Close(); err != nil {
		glog.Warningf("unsubscribe %s: %v", rw.SubTopic, err)
	}
	return ctx.Err()
}
