package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/teensy.go/pkg/framework"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

// Vehicle TypeIDs
const (
	VehicleStateQueryTypeID uint32 = GroupVehicle | 0x0000
	VehicleStateTypeID      uint32 = VehicleStateQueryTypeID | TypeIDMaskReply
	VehicleDriveTypeID      uint32 = GroupVehicle | 0x0001
	VehicleThrottleTypeID   uint32 = GroupVehicle | 0x0002
	VehicleModeTypeID       uint32 = GroupVehicle | 0x0003
	VehicleShutdownTypeID   uint32 = GroupVehicle | 0x0004
	VehicleStatusTypeID     uint32 = TypeIDKindEvent | GroupVehicle | 0x0000
	VehicleFaultTypeID      uint32 = TypeIDKindEvent | GroupVehicle | 0x0001
)

// Fault reasons reported in VehicleFault.
const (
	FaultLinkLost    = "link-lost"
	FaultHostStalled = "host-stalled"
	FaultTransport   = "transport"
)

func init() {
	Register(
		(*VehicleStateQuery)(nil),
		(*VehicleState)(nil),
		(*VehicleDrive)(nil),
		(*VehicleThrottle)(nil),
		(*VehicleMode)(nil),
		(*VehicleShutdown)(nil),
		(*VehicleStatus)(nil),
		(*VehicleFault)(nil),
	)
}

// VehicleStateQuery queries the vehicle state.
type VehicleStateQuery struct {
}

// NewMessage implements Message.
func (m *VehicleStateQuery) NewMessage() fx.Message { return &VehicleStateQuery{} }

// TypeID implements SerializableMessage.
func (m *VehicleStateQuery) TypeID() uint32 { return VehicleStateQueryTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleStateQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleStateQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleStateQuery) Reset() { *m = VehicleStateQuery{} }

// String implements proto.Message.
func (m *VehicleStateQuery) String() string { return proto.CompactTextString(m) }

// VehicleState is the reply of VehicleStateQuery.
type VehicleState struct {
	Speed    float64 `protobuf:"fixed64,1,opt,name=speed,proto3" json:"speed,omitempty"`
	Throttle float64 `protobuf:"fixed64,2,opt,name=throttle,proto3" json:"throttle,omitempty"`
	Steering float64 `protobuf:"fixed64,3,opt,name=steering,proto3" json:"steering,omitempty"`
	Mode     string  `protobuf:"bytes,4,opt,name=mode,proto3" json:"mode,omitempty"`
	// Running is false once the MCU link shut down.
	Running bool `protobuf:"varint,5,opt,name=running,proto3" json:"running,omitempty"`
}

// NewVehicleState creates the message from a state snapshot.
func NewVehicleState(st vehicle.State, running bool) *VehicleState {
	return &VehicleState{
		Speed:    st.Speed,
		Throttle: st.Throttle,
		Steering: st.Steering,
		Mode:     st.Mode.String(),
		Running:  running,
	}
}

// State converts the message back to a snapshot.
// An unknown mode is reported as manual.
func (m *VehicleState) State() vehicle.State {
	mode, _ := vehicle.ParseMode(m.Mode)
	return vehicle.State{
		Speed:    m.Speed,
		Throttle: m.Throttle,
		Steering: m.Steering,
		Mode:     mode,
	}
}

// NewMessage implements Message.
func (m *VehicleState) NewMessage() fx.Message { return &VehicleState{} }

// TypeID implements SerializableMessage.
func (m *VehicleState) TypeID() uint32 { return VehicleStateTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleState) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleState) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleState) Reset() { *m = VehicleState{} }

// String implements proto.Message.
func (m *VehicleState) String() string { return proto.CompactTextString(m) }

// VehicleDrive commands speed and steering, effective in auto mode.
type VehicleDrive struct {
	Speed    float64 `protobuf:"fixed64,1,opt,name=speed,proto3" json:"speed,omitempty"`
	Steering float64 `protobuf:"fixed64,2,opt,name=steering,proto3" json:"steering,omitempty"`
}

// NewMessage implements Message.
func (m *VehicleDrive) NewMessage() fx.Message { return &VehicleDrive{} }

// TypeID implements SerializableMessage.
func (m *VehicleDrive) TypeID() uint32 { return VehicleDriveTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleDrive) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleDrive) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleDrive) Reset() { *m = VehicleDrive{} }

// String implements proto.Message.
func (m *VehicleDrive) String() string { return proto.CompactTextString(m) }

// VehicleThrottle commands throttle and steering, effective in auto mode.
type VehicleThrottle struct {
	Throttle float64 `protobuf:"fixed64,1,opt,name=throttle,proto3" json:"throttle,omitempty"`
	Steering float64 `protobuf:"fixed64,2,opt,name=steering,proto3" json:"steering,omitempty"`
}

// NewMessage implements Message.
func (m *VehicleThrottle) NewMessage() fx.Message { return &VehicleThrottle{} }

// TypeID implements SerializableMessage.
func (m *VehicleThrottle) TypeID() uint32 { return VehicleThrottleTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleThrottle) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleThrottle) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleThrottle) Reset() { *m = VehicleThrottle{} }

// String implements proto.Message.
func (m *VehicleThrottle) String() string { return proto.CompactTextString(m) }

// VehicleMode switches the mode on the host side.
type VehicleMode struct {
	Mode string `protobuf:"bytes,1,opt,name=mode,proto3" json:"mode,omitempty"`
}

// NewMessage implements Message.
func (m *VehicleMode) NewMessage() fx.Message { return &VehicleMode{} }

// TypeID implements SerializableMessage.
func (m *VehicleMode) TypeID() uint32 { return VehicleModeTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleMode) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleMode) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleMode) Reset() { *m = VehicleMode{} }

// String implements proto.Message.
func (m *VehicleMode) String() string { return proto.CompactTextString(m) }

// VehicleShutdown stops the MCU. The link can't be resumed.
type VehicleShutdown struct {
}

// NewMessage implements Message.
func (m *VehicleShutdown) NewMessage() fx.Message { return &VehicleShutdown{} }

// TypeID implements SerializableMessage.
func (m *VehicleShutdown) TypeID() uint32 { return VehicleShutdownTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleShutdown) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleShutdown) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleShutdown) Reset() { *m = VehicleShutdown{} }

// String implements proto.Message.
func (m *VehicleShutdown) String() string { return proto.CompactTextString(m) }

// VehicleStatus is an Event message reflecting state changes.
type VehicleStatus struct {
	State *VehicleState `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
}

// NewMessage implements Message.
func (m *VehicleStatus) NewMessage() fx.Message { return &VehicleStatus{} }

// TypeID implements SerializableMessage.
func (m *VehicleStatus) TypeID() uint32 { return VehicleStatusTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleStatus) Reset() { *m = VehicleStatus{} }

// String implements proto.Message.
func (m *VehicleStatus) String() string { return proto.CompactTextString(m) }

// VehicleFault is an Event message sent when the MCU link fails.
type VehicleFault struct {
	Reason  string `protobuf:"bytes,1,opt,name=reason,proto3" json:"reason,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

// NewMessage implements Message.
func (m *VehicleFault) NewMessage() fx.Message { return &VehicleFault{} }

// TypeID implements SerializableMessage.
func (m *VehicleFault) TypeID() uint32 { return VehicleFaultTypeID }

// Serializable implements SerializableMessage.
func (m *VehicleFault) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *VehicleFault) ProtoMessage() {}

// Reset implements proto.Message.
func (m *VehicleFault) Reset() { *m = VehicleFault{} }

// String implements proto.Message.
func (m *VehicleFault) String() string { return proto.CompactTextString(m) }
