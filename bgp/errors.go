// Copyright 2026 The routecore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bgp

import "fmt"

// NOTIFICATION error codes (RFC 4271 §4.5).
const (
	ErrcodeMessageHeader    uint8 = 1
	ErrcodeOpenMessage      uint8 = 2
	ErrcodeUpdateMessage    uint8 = 3
	ErrcodeHoldTimerExpired uint8 = 4
	ErrcodeFSMError         uint8 = 5
	ErrcodeCease            uint8 = 6
)

// Message header error subcodes.
const (
	SubcodeConnNotSynchronized uint8 = 1
	SubcodeBadMessageLength    uint8 = 2
	SubcodeBadMessageType      uint8 = 3
)

// OPEN message error subcodes.
const (
	SubcodeUnsupportedVersion    uint8 = 1
	SubcodeBadPeerAS             uint8 = 2
	SubcodeBadBGPIdentifier      uint8 = 3
	SubcodeUnsupportedOptParam   uint8 = 4
	SubcodeUnacceptableHoldTime  uint8 = 6
	SubcodeUnsupportedCapability uint8 = 7
)

// UPDATE message error subcodes.
const (
	SubcodeMalformedAttributeList    uint8 = 1
	SubcodeUnrecognizedWellKnownAttr uint8 = 2
	SubcodeMissingWellKnownAttr      uint8 = 3
	SubcodeAttributeFlagsError       uint8 = 4
	SubcodeAttributeLengthError      uint8 = 5
	SubcodeInvalidOriginAttribute    uint8 = 6
	SubcodeInvalidNextHopAttribute   uint8 = 8
	SubcodeOptionalAttributeError    uint8 = 9
	SubcodeInvalidNetworkField       uint8 = 10
	SubcodeMalformedASPath           uint8 = 11
)

// SubcodeUnspecific is used where RFC 4271 defines no subcode.
const SubcodeUnspecific uint8 = 0

var errcodeNames = map[uint8]string{
	ErrcodeMessageHeader:    "message header error",
	ErrcodeOpenMessage:      "OPEN message error",
	ErrcodeUpdateMessage:    "UPDATE message error",
	ErrcodeHoldTimerExpired: "hold timer expired",
	ErrcodeFSMError:         "FSM error",
	ErrcodeCease:            "cease",
}

// MessageError describes a malformed or unacceptable message. It
// carries the (code, subcode) pair placed in the resulting
// NOTIFICATION; the connection is torn down afterwards.
type MessageError struct {
	Code    uint8
	Subcode uint8
	Reason  string
	Data    []byte
}

func (e *MessageError) Error() string {
	name := errcodeNames[e.Code]
	if name == "" {
		name = fmt.Sprintf("error code %d", e.Code)
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s (subcode %d)", name, e.Subcode)
	}
	return fmt.Sprintf("%s (subcode %d): %s", name, e.Subcode, e.Reason)
}

func msgErrf(code, subcode uint8, format string, args ...any) *MessageError {
	return &MessageError{Code: code, Subcode: subcode, Reason: fmt.Sprintf(format, args...)}
}
