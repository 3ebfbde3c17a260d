package sh

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

// FormatInfo is "type/id: description".
func FormatInfo(info l1.ControllerInfo) string {
	if info.Meta.Description == "" {
		return info.Ref.Name()
	}
	return info.Ref.Name() + ": " + info.Meta.Description
}

// FormatMessage renders a reply or event. Text form is the type name
// followed by the fields, CommandOK is just "OK".
func FormatMessage(msg fx.Message, asJSON bool) (string, error) {
	serializable, ok := msg.(msgs.SerializableMessage)
	if !ok {
		return "", fmt.Errorf("unexpected message %T", msg)
	}
	if asJSON {
		out, err := json.Marshal(serializable.Serializable())
		return string(out), err
	}
	if _, ok := msg.(*msgs.CommandOK); ok {
		return "OK", nil
	}
	name := reflect.Indirect(reflect.ValueOf(msg)).Type().Name()
	fields := strings.TrimSpace(serializable.Serializable().String())
	if fields == "" {
		return name, nil
	}
	return name + " " + fields, nil
}
