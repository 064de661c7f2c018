package core

import "dcservo/protocol"

// ResponseSender frames and queues an outgoing message. *protocol.Transport
// implements it.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

var globalTransport ResponseSender

// SetGlobalTransport sets where responses are sent. A nil sender drops them.
func SetGlobalTransport(transport ResponseSender) {
	globalTransport = transport
}

// SendResponse encodes a registered response and hands it to the transport.
// Every response must be registered before it is sent.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}
