package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1/comm/mqtt"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/robo/"
	topic   = "#"
)

func init() {
	if val := os.Getenv("ROBO_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&topic, "topic", topic, "Topic to watch under the prefix, e.g. teensy/+/#.")
}

func printf(format string, args ...interface{}) {
	fmt.Printf(time.Now().Format("15:04:05.000000")+" "+format+"\n", args...)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		glog.Exit(token.Error())
	}
	defer q.Close()

	q.Sub(topic, mqtt.Handler(func(topic string, payload []byte) {
		if strings.HasSuffix(topic, mqtt.MetaTopicSuffix) {
			if info, ok := mqtt.ParseMetaTopic(topic, payload); ok {
				printf("%s: online %q %v", info.Ref.Name(), info.Meta.Description, info.Meta.Labels)
			} else {
				printf("%s: offline", topic)
			}
			return
		}
		typed, err := msgs.DecodeTyped(payload)
		if err != nil {
			printf("%s: bad message: %v", topic, err)
			return
		}
		msg, err := typed.Decode()
		if err != nil {
			printf("%s: decode error: (type_id=%x) %v", topic, typed.TypeID, err)
			return
		}
		printf("%s: [%s] %s", topic, messageName(msg),
			msg.(msgs.SerializableMessage).Serializable().String())
	}))

	<-fx.NewRunner().HandleSignals().Context.Done()
}

func messageName(msg fx.Message) string {
	return reflect.Indirect(reflect.ValueOf(msg)).Type().Name()
}
