// Binary protocol spoken between limelight boards and the ground server.
//
// Every message starts with one tag byte, payload shape is fixed by the tag.
// Telemetry payload length also depends on the board id it carries,
// see ValueCount. There is no length prefix or other framing,
// messages are self-delimiting and may be written back to back into a stream.
//
//	Telemetry: 0x01 | board:u8 | timestamp:u64 | value[N]:f32
//	Valve:     0x02 | command:u32 | state:u32
//	Heartbeat: 0x03
//
// All integers and floats are big endian.
package limelight
