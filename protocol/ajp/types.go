// Copyright 2025 The tidewire Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ajp implements the AJP/1.3 framing codec: fixed-mark packet
// framing, the FORWARD_REQUEST decoder, and the response-side encoder
// (SEND_HEADERS/SEND_BODY_CHUNK/END_RESPONSE/GET_BODY_CHUNK). Decoded
// messages bridge into protocol/http1's HttpRequestPacket/HttpContent
// shapes via ToHTTPRequest, so the HTTP pipeline stays protocol-agnostic.
package ajp

// MaxPacketSize is the largest frame (magic+length header included) a
// peer may send; a declared length that would exceed it is fatal.
const MaxPacketSize = 8192

// maxBodyChunk is MaxPacketSize minus the framing overhead a
// SEND_BODY_CHUNK packet carries: 4-byte frame header, 2-byte length
// prefix, 1-byte trailing 0x00, 1-byte message type.
const maxBodyChunk = MaxPacketSize - 8

var (
	// magicServer prefixes packets the container (server) sends to the
	// web server: SEND_HEADERS, SEND_BODY_CHUNK, END_RESPONSE,
	// GET_BODY_CHUNK.
	magicServer = [2]byte{0x41, 0x42}
	// magicForwarder prefixes packets the web server sends to the
	// container: FORWARD_REQUEST, SHUTDOWN, PING, CPING, body data.
	magicForwarder = [2]byte{0x12, 0x34}
)

// Packet type codes, from the payload's first byte.
const (
	PacketForwardRequest = 2
	PacketSendBodyChunk  = 3
	PacketSendHeaders    = 4
	PacketEndResponse    = 5
	PacketGetBodyChunk   = 6
	PacketShutdown       = 7
	PacketPing           = 8
	PacketCPong          = 9
	PacketCPing          = 10
)

// methodTable maps AJP's single-byte method code to the canonical HTTP
// method string (AJP/1.3 spec §2.2, "Request methods").
var methodTable = map[byte]string{
	1: "OPTIONS", 2: "GET", 3: "HEAD", 4: "POST", 5: "PUT", 6: "DELETE",
	7: "TRACE", 8: "PROPFIND", 9: "PROPPATCH", 10: "MKCOL", 11: "COPY",
	12: "MOVE", 13: "LOCK", 14: "UNLOCK", 15: "ACL", 16: "REPORT",
	17: "VERSION-CONTROL", 18: "CHECKIN", 19: "CHECKOUT", 20: "UNCHECKOUT",
	21: "SEARCH", 22: "MKWORKSPACE", 23: "UPDATE", 24: "LABEL", 25: "MERGE",
	26: "BASELINE-CONTROL", 27: "MKACTIVITY",
}

// commonHeaderTable maps the 0xA0xx coded common-header ids to their
// canonical HTTP header name, so FORWARD_REQUEST doesn't have to spell
// out "Content-Length" etc. as a length-prefixed string every time.
var commonHeaderTable = map[uint16]string{
	0xA001: "Accept",
	0xA002: "Accept-Charset",
	0xA003: "Accept-Encoding",
	0xA004: "Accept-Language",
	0xA005: "Authorization",
	0xA006: "Connection",
	0xA007: "Content-Type",
	0xA008: "Content-Length",
	0xA009: "Cookie",
	0xA00A: "Cookie2",
	0xA00B: "Host",
	0xA00C: "Pragma",
	0xA00D: "Referer",
	0xA00E: "User-Agent",
}

// Attribute codes, terminated in the wire format by 0xFF.
const (
	attrContextPath   = 0x01 // unused by Tomcat/most containers; reserved
	attrServletPath   = 0x02
	attrRemoteUser    = 0x03
	attrAuthType      = 0x04
	attrQueryString   = 0x05
	attrRoute         = 0x06
	attrSSLCert       = 0x07
	attrSSLCipher     = 0x08
	attrSSLSession    = 0x09
	attrReqAttribute  = 0x0A
	attrSSLKeySize    = 0x0B
	attrSecret        = 0x0C
	attrStoredMethod  = 0x0D
	attrAreDone       = 0xFF
)

// jkAttributeNames maps the SSL attribute codes to their conventional JK
// names. It is a name table only: the decoder does not read it, and each
// of these codes is decoded into its own dedicated ForwardRequest field.
var jkAttributeNames = map[byte]string{
	attrSSLCert:    "SSL_CERT",
	attrSSLCipher:  "SSL_CIPHER",
	attrSSLSession: "SSL_SESSION",
	attrSSLKeySize: "SSL_KEY_SIZE",
}

// ForwardRequest is the decoded FORWARD_REQUEST message: an AJP request
// in its native shape, before bridging into http1.HttpRequestPacket.
type ForwardRequest struct {
	Method       string
	Protocol     string
	RequestURI   string
	RemoteAddr   string
	RemoteHost   string
	ServerName   string
	ServerPort   int
	IsSSL        bool
	Headers      []KeyValue

	RemoteUser    string
	AuthType      string
	QueryString   string
	Route         string
	SSLCert       string
	SSLCipher     string
	SSLSession    string
	SSLKeySize    string
	StoredMethod  string
	Secret        string

	// Attributes carries REQ_ATTRIBUTE name/value pairs verbatim, ready
	// for mapstructure.Decode into an application-defined struct.
	Attributes map[string]string

	// ContentLength mirrors the Content-Length header AJP always sends
	// as a coded common header when the request has a body.
	ContentLength int64
}

// KeyValue is one decoded header pair, preserving wire order the same
// way http1.Header does.
type KeyValue struct {
	Name  string
	Value string
}

// DataChunk is a body chunk the web server forwarded unsolicited after a
// FORWARD_REQUEST with Content-Length > 0, or in response to a
// GET_BODY_CHUNK pull. An empty chunk signals end of body.
type DataChunk struct {
	Data []byte
}

// Ping, CPing and Shutdown are the parameterless control messages.
type Ping struct{}
type CPing struct{}
type Shutdown struct{}
