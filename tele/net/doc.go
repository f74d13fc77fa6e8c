// Stream transport for limelight boards.
//
// Boards dial the server and write limelight messages back to back,
// there is no framing, every message is self-delimiting.
// Server answers each received message with a single Heartbeat.
// Board waits for that reply before sending next message.
//
// Decode error closes connection because stream position is lost.
// There is no authentication, retransmission or flow control.
package telenet
