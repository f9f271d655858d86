/*
Package relay - the duplex relay between local stdio and one peer Channel

1. Lines - single pump from stdin to whichever session wants the next line

2. Relay - one session: outbound and inbound directions, first to end wins

3. PacketChannel - Channel over an unconnected udp socket

Architecture diagram:

	                     Relay.Run (errgroup)
	          +------------------------------------------+
	 stdin -->| Lines --> outbound: "[user]: " + line    |---> Channel.Write
	          |                                          |
	stdout <--| inbound: raw bytes, one Write per Read   |<--- Channel.Read
	          +------------------------------------------+
	                 first direction to return cancels
	                 the group and closes the Channel
*/
package relay
