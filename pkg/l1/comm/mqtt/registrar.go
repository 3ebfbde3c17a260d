package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/comm"
)

// MetaTopicSuffix is appended to type/id for the retained meta topic.
// An empty retained payload means the controller is offline.
const MetaTopicSuffix = "/meta"

// Registrar implements l1.Registrar using MQTT.
type Registrar struct {
	Queue *Queue
	Info  l1.ControllerInfo

	metaJSON  []byte
	registrar comm.Registrar
}

// NewRegistrar creates a Registrar.
func NewRegistrar(brokerURL string, info l1.ControllerInfo) (*Registrar, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	b, err := ParseBrokerURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := b.TopicPrefix + info.Ref.Name() + MetaTopicSuffix
	b.Options.SetBinaryWill(metaTopic, nil, 1, true)
	if b.Options.ClientID == "" {
		b.Options.SetClientID("teensy:" + info.Ref.Name())
	}
	r := &Registrar{
		Queue:    NewQueue(b),
		Info:     info,
		metaJSON: meta,
	}
	r.Queue.OnConnect = func(*Queue) { r.publishMeta(r.metaJSON) }
	r.registrar.Init(NewPacketReadWriter(r.Queue).ForController(info.Ref))
	return r, nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.registrar.SendEvent(ctx, msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.registrar)
	loop.AddRunnable(r)
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	if token := r.Queue.Connect(); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		// auto reconnect keeps trying.
		glog.Warningf("MQTT connect: %v", token.Error())
	}
	<-ctx.Done()
	r.publishMeta(nil)
	r.Queue.Close()
	return ctx.Err()
}

func (r *Registrar) publishMeta(payload []byte) {
	token := r.Queue.PubWith(r.Info.Ref.Name()+MetaTopicSuffix, payload, 1, true)
	if token.WaitTimeout(time.Second) && token.Error() != nil {
		glog.Warningf("publish meta: %v", token.Error())
	}
}
