package mqtt

import (
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler receives messages of a subscription. topic has TopicPrefix
// removed.
type Handler func(topic string, payload []byte)

// ConnectHandler is notified on connect and on connection loss.
type ConnectHandler func(*Queue)

// Queue is a paho client with topics relative to TopicPrefix and
// any number of handlers per topic filter. Filters stay subscribed
// across reconnects.
type Queue struct {
	Client       paho.Client
	TopicPrefix  string
	QoS          byte
	OnConnect    ConnectHandler
	OnDisconnect ConnectHandler

	lock sync.RWMutex
	subs map[string][]*Subscription
}

// Subscription is a handler on a topic filter.
type Subscription struct {
	Token paho.Token

	queue   *Queue
	filter  string
	handler Handler
}

// NewQueue creates a Queue, it doesn't connect.
func NewQueue(b *Broker) *Queue {
	q := &Queue{
		TopicPrefix: b.TopicPrefix,
		QoS:         b.QoS,
		subs:        make(map[string][]*Subscription),
	}
	b.Options.SetOnConnectHandler(func(paho.Client) { q.connected() })
	b.Options.SetConnectionLostHandler(func(_ paho.Client, err error) { q.connectionLost(err) })
	q.Client = paho.NewClient(b.Options)
	return q
}

// NewQueueFromURL creates a Queue from a broker URL.
func NewQueueFromURL(brokerURL string) (*Queue, error) {
	b, err := ParseBrokerURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewQueue(b), nil
}

// Connect starts connecting, auto reconnect is on.
func (q *Queue) Connect() paho.Token {
	return q.Client.Connect()
}

// Close disconnects.
func (q *Queue) Close() error {
	q.Client.Disconnect(250)
	return nil
}

// Pub publishes with QoS, not retained.
func (q *Queue) Pub(topic string, payload []byte) paho.Token {
	return q.PubWith(topic, payload, q.QoS, false)
}

// PubWith publishes with explicit QoS and retain flag.
func (q *Queue) PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token {
	return q.Client.Publish(q.TopicPrefix+topic, qos, retain, payload)
}

// Sub adds handler to filter, which may contain + and a trailing #.
// The broker is only asked for the first handler of a filter.
func (q *Queue) Sub(filter string, handler Handler) *Subscription {
	sub := &Subscription{queue: q, filter: filter, handler: handler}
	q.lock.Lock()
	first := len(q.subs[filter]) == 0
	q.subs[filter] = append(q.subs[filter], sub)
	q.lock.Unlock()
	if !first {
		sub.Token = &paho.DummyToken{}
		return sub
	}
	glog.V(2).Infof("SUB %q", q.TopicPrefix+filter)
	sub.Token = q.Client.Subscribe(q.TopicPrefix+filter, q.QoS, q.received)
	return sub
}

// Close removes the handler, unsubscribing the filter after the last
// one.
func (s *Subscription) Close() error {
	q := s.queue
	q.lock.Lock()
	subs := q.subs[s.filter]
	for n, sub := range subs {
		if sub == s {
			subs = append(subs[:n:n], subs[n+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.subs, s.filter)
	} else {
		q.subs[s.filter] = subs
	}
	q.lock.Unlock()
	if !last {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.filter)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}

// Resubscribe subscribes all filters again, a clean session forgets
// them on reconnect.
func (q *Queue) Resubscribe() paho.Token {
	filters := make(map[string]byte)
	q.lock.RLock()
	for filter := range q.subs {
		filters[q.TopicPrefix+filter] = q.QoS
	}
	q.lock.RUnlock()
	if len(filters) == 0 {
		return &paho.DummyToken{}
	}
	glog.V(2).Infof("SUB %d filters", len(filters))
	return q.Client.SubscribeMultiple(filters, q.received)
}

func (q *Queue) connected() {
	glog.Info("MQTT connected")
	q.Resubscribe()
	if h := q.OnConnect; h != nil {
		h(q)
	}
}

func (q *Queue) connectionLost(err error) {
	glog.Warningf("MQTT connection lost: %v", err)
	if h := q.OnDisconnect; h != nil {
		h(q)
	}
}

func (q *Queue) received(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, q.TopicPrefix) {
		return
	}
	topic = topic[len(q.TopicPrefix):]
	glog.V(2).Infof("RCV %q", topic)
	var handlers []Handler
	q.lock.RLock()
	for filter, subs := range q.subs {
		if !MatchTopic(topic, filter) {
			continue
		}
		for _, sub := range subs {
			handlers = append(handlers, sub.handler)
		}
	}
	q.lock.RUnlock()
	for _, h := range handlers {
		h(topic, msg.Payload())
	}
}

// MatchTopic reports whether topic matches filter. "+" matches
// exactly one level, a trailing "#" the parent level and any below.
func MatchTopic(topic, filter string) bool {
	levels := strings.Split(topic, "/")
	for n, f := range strings.Split(filter, "/") {
		switch {
		case f == "#":
			return true
		case n >= len(levels):
			return false
		case f != "+" && f != levels[n]:
			return false
		}
	}
	return len(levels) == len(strings.Split(filter, "/"))
}
