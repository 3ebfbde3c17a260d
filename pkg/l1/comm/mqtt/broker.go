package mqtt

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Broker is the parsed form of a broker URL:
//
//	mqtt://[user:password@]host:port/topic-prefix/?client-id=id&qos=1&keepalive=10s
//
// mqtt is tcp to paho, other schemes (ssl, ws, wss) are passed as is.
type Broker struct {
	Options     *paho.ClientOptions
	TopicPrefix string
	QoS         byte
}

// ParseBrokerURL parses a broker URL.
func ParseBrokerURL(brokerURL string) (*Broker, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}
	b := &Broker{
		Options:     paho.NewClientOptions().AddBroker(scheme + "://" + u.Host),
		TopicPrefix: strings.TrimPrefix(u.Path, "/"),
	}
	b.Options.SetAutoReconnect(true).SetCleanSession(true)
	if user := u.User; user != nil {
		b.Options.SetUsername(user.Username())
		if pwd, ok := user.Password(); ok {
			b.Options.SetPassword(pwd)
		}
	}
	if err := b.applyQuery(u.Query()); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Broker) applyQuery(query url.Values) error {
	if id := query.Get("client-id"); id != "" {
		b.Options.SetClientID(id)
	}
	if val := query.Get("qos"); val != "" {
		qos, err := strconv.ParseUint(val, 10, 8)
		if err != nil || qos > 2 {
			return fmt.Errorf("invalid qos %q", val)
		}
		b.QoS = byte(qos)
	}
	if val := query.Get("keepalive"); val != "" {
		keepAlive, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid keepalive %q: %w", val, err)
		}
		b.Options.SetKeepAlive(keepAlive)
	}
	return nil
}
