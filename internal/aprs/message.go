package aprs

import "strings"

const callsignLenMax = 9

// disallowedMessageRecipients blocks a handful of recipients used by
// old third-party software (aprsd status broadcasts, APRS+SA login
// announcements) that otherwise flood every client subscribed to
// messages addressed to them.
var disallowedMessageRecipients = []string{
	"javaMSG",
	"JAVATITLE",
	"JAVATITL2",
	"USERLIST",
	"KIPSS",
}

func recipientDisallowed(recipient string) bool {
	for _, d := range disallowedMessageRecipients {
		if strings.EqualFold(d, recipient) {
			return true
		}
	}
	return false
}

// preparseMessage classifies a ':'-type packet's body (addressee plus
// colon plus text) as a plain message, an NWS/SKYWARN bulletin, or a
// telemetry parameter/unit/coefficient/bitsense definition, and
// extracts the message recipient, msgid and ack flag. It returns false
// when the recipient is on the deny list, in which case the packet
// should be dropped rather than relayed.
func preparseMessage(p *Packet, body []byte) bool {
	if len(body) < 10 || body[9] != ':' {
		return false
	}

	if hasPrefix(body, "NWS-") || hasPrefix(body, "NWS_") || hasPrefix(body, "SKY") {
		p.Flags |= NWS
	}

	if len(body) >= 16 {
		payload := body[10:]
		switch {
		case hasPrefix(payload, "PARM."), hasPrefix(payload, "UNIT."),
			hasPrefix(payload, "EQNS."), hasPrefix(payload, "BITS."):
			p.Flags &^= Message
			p.Flags |= Telemetry
		}
	}

	recipient := extractRecipient(body)
	p.DstName = recipient
	if recipientDisallowed(recipient) {
		return false
	}
	return true
}

func extractRecipient(body []byte) string {
	n := callsignLenMax
	if n > len(body) {
		n = len(body)
	}
	end := 0
	for end < n && body[end] != ' ' && body[end] != ':' && body[end] != 0 {
		end++
	}
	return string(body[:end])
}

// MessageBody is the addressee-stripped text and msgid of a parsed
// message packet, returned by DecodeMessage.
type MessageBody struct {
	Text  string
	MsgID string
	IsAck bool
}

// DecodeMessage extracts the free-text body and trailing "{msgid" of a
// MESSAGE-classified packet's info field. It returns false if the
// packet is not classified as a message or is malformed.
func DecodeMessage(p *Packet) (MessageBody, bool) {
	if !p.Flags.Has(Message) {
		return MessageBody{}, false
	}
	info := p.Info
	if len(info) < 11 || info[10] != ':' {
		return MessageBody{}, false
	}
	body := info[11:]

	msgidStart := -1
	for i := len(body) - 1; i > 0; i-- {
		if body[i] == '{' {
			msgidStart = i
			break
		}
	}

	var text, msgid string
	if msgidStart >= 0 {
		text = string(body[:msgidStart])
		msgid = string(body[msgidStart+1:])
	} else {
		text = string(body)
	}

	if msgid == "" && len(text) > 3 && text[:3] == "ack" {
		return MessageBody{MsgID: text[3:], IsAck: true}, true
	}

	return MessageBody{Text: text, MsgID: msgid}, true
}
