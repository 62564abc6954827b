// Copyright 2024 The NyxKernel Authors.
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

// Package proto is the internal binary wire format for the two values
// that cross a transport boundary inside the kernel rather than one
// presented to an external caller: syscall.SyscallResult (dispatcher
// to completion queue, and onward to any out-of-process reaper) and
// kevent.Event (every subsystem to the observability stream). Both
// carry an `any`-typed payload field, which rules out protoc-generated
// messages without first pinning the payload down to a oneof — and
// generating those messages would mean running protoc, which this
// tree cannot do. Instead this package builds directly on
// google.golang.org/protobuf/encoding/protowire's wire primitives
// (AppendTag/AppendVarint/AppendBytes, ConsumeTag/ConsumeVarint/
// ConsumeBytes), the same low-level package protoc-generated code
// itself calls into, and handles the open payload the way
// google.protobuf.Any does: a type-name field alongside an opaque
// bytes field, with a small registry translating known type names
// back to concrete Go values on decode.
package proto

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nyxkernel/kernel/pkg/kernel/codec"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/syscall"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// SyscallResult field numbers.
const (
	resultOutcome = protowire.Number(1)
	resultMessage = protowire.Number(2)
	resultReason  = protowire.Number(3)
	resultDataTag = protowire.Number(4)
	resultDataVal = protowire.Number(5)
)

// EncodeResult renders r as a protowire message.
func EncodeResult(r syscall.SyscallResult) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, resultOutcome, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Outcome))
	if r.Message != "" {
		b = protowire.AppendTag(b, resultMessage, protowire.BytesType)
		b = protowire.AppendString(b, r.Message)
	}
	if r.Reason != "" {
		b = protowire.AppendTag(b, resultReason, protowire.BytesType)
		b = protowire.AppendString(b, r.Reason)
	}
	if r.Data != nil {
		tag, data, err := encodeAny(r.Data)
		if err != nil {
			return nil, fmt.Errorf("proto: encoding SyscallResult.Data: %w", err)
		}
		b = protowire.AppendTag(b, resultDataTag, protowire.BytesType)
		b = protowire.AppendString(b, tag)
		b = protowire.AppendTag(b, resultDataVal, protowire.BytesType)
		b = protowire.AppendBytes(b, data)
	}
	return b, nil
}

// DecodeResult parses a message produced by EncodeResult.
func DecodeResult(b []byte) (syscall.SyscallResult, error) {
	var r syscall.SyscallResult
	var dataTag string
	var dataVal []byte

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, fmt.Errorf("proto: DecodeResult: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case resultOutcome:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, fmt.Errorf("proto: DecodeResult: outcome: %w", protowire.ParseError(n))
			}
			r.Outcome = syscall.Outcome(v)
			b = b[n:]
		case resultMessage:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return r, fmt.Errorf("proto: DecodeResult: message: %w", protowire.ParseError(n))
			}
			r.Message = v
			b = b[n:]
		case resultReason:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return r, fmt.Errorf("proto: DecodeResult: reason: %w", protowire.ParseError(n))
			}
			r.Reason = v
			b = b[n:]
		case resultDataTag:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return r, fmt.Errorf("proto: DecodeResult: data tag: %w", protowire.ParseError(n))
			}
			dataTag = v
			b = b[n:]
		case resultDataVal:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return r, fmt.Errorf("proto: DecodeResult: data value: %w", protowire.ParseError(n))
			}
			dataVal = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, fmt.Errorf("proto: DecodeResult: skipping field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if dataTag != "" {
		data, err := decodeAny(dataTag, dataVal)
		if err != nil {
			return r, fmt.Errorf("proto: DecodeResult: %w", err)
		}
		r.Data = data
	}
	return r, nil
}

// Event field numbers.
const (
	eventTimestamp   = protowire.Number(1)
	eventSeverity    = protowire.Number(2)
	eventCategory    = protowire.Number(3)
	eventPid         = protowire.Number(4)
	eventCausalityID = protowire.Number(5)
	eventPayloadTag  = protowire.Number(6)
	eventPayloadVal  = protowire.Number(7)
)

// EncodeEvent renders e as a protowire message. A nil Pid or
// CausalityID is represented by the field's absence, not a zero
// value, so decode can round-trip the "unset" case exactly.
func EncodeEvent(e kevent.Event) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, eventTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(e.TimestampNanos))
	b = protowire.AppendTag(b, eventSeverity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Severity))
	b = protowire.AppendTag(b, eventCategory, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Category))
	if e.Pid != nil {
		b = protowire.AppendTag(b, eventPid, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*e.Pid))
	}
	if e.CausalityID != nil {
		b = protowire.AppendTag(b, eventCausalityID, protowire.BytesType)
		id := *e.CausalityID
		b = protowire.AppendBytes(b, id[:])
	}
	if e.Payload != nil {
		tag, data, err := encodeAny(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("proto: encoding Event.Payload: %w", err)
		}
		b = protowire.AppendTag(b, eventPayloadTag, protowire.BytesType)
		b = protowire.AppendString(b, tag)
		b = protowire.AppendTag(b, eventPayloadVal, protowire.BytesType)
		b = protowire.AppendBytes(b, data)
	}
	return b, nil
}

// DecodeEvent parses a message produced by EncodeEvent.
func DecodeEvent(b []byte) (kevent.Event, error) {
	var e kevent.Event
	var payloadTag string
	var payloadVal []byte

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("proto: DecodeEvent: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case eventTimestamp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: timestamp: %w", protowire.ParseError(n))
			}
			e.TimestampNanos = protowire.DecodeZigZag(v)
			b = b[n:]
		case eventSeverity:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: severity: %w", protowire.ParseError(n))
			}
			e.Severity = kevent.Severity(v)
			b = b[n:]
		case eventCategory:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: category: %w", protowire.ParseError(n))
			}
			e.Category = kevent.Category(v)
			b = b[n:]
		case eventPid:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: pid: %w", protowire.ParseError(n))
			}
			pid := types.Pid(v)
			e.Pid = &pid
			b = b[n:]
		case eventCausalityID:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: causality id: %w", protowire.ParseError(n))
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return e, fmt.Errorf("proto: DecodeEvent: causality id: %w", err)
			}
			e.CausalityID = &id
			b = b[n:]
		case eventPayloadTag:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: payload tag: %w", protowire.ParseError(n))
			}
			payloadTag = v
			b = b[n:]
		case eventPayloadVal:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: payload value: %w", protowire.ParseError(n))
			}
			payloadVal = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("proto: DecodeEvent: skipping field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if payloadTag != "" {
		payload, err := decodeAny(payloadTag, payloadVal)
		if err != nil {
			return e, fmt.Errorf("proto: DecodeEvent: %w", err)
		}
		e.Payload = payload
	}
	return e, nil
}

// encodeAny renders v's dynamic type name and its codec.EncodeSyscall-
// style external JSON encoding, mirroring how google.protobuf.Any
// pairs a type URL with an opaque bytes field.
func encodeAny(v any) (tag string, data []byte, err error) {
	if sc, ok := v.(syscall.Syscall); ok {
		data, err := codec.EncodeSyscall(sc)
		return "syscall:" + sc.Name(), data, err
	}
	data, err = json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	return reflect.TypeOf(v).String(), data, nil
}

// decodeAny reverses encodeAny. Known kevent payload type names and
// the syscall:* prefix reconstruct their exact concrete Go type;
// anything else decodes to the generic shape encoding/json produces
// (map[string]any, []any, float64, ...), since a payload this package
// has never seen has no concrete Go type to reconstruct into.
func decodeAny(tag string, data []byte) (any, error) {
	if _, ok := stripPrefix(tag, "syscall:"); ok {
		return codec.DecodeSyscall(data)
	}

	if factory, ok := payloadFactories[tag]; ok {
		return factory(data)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding payload tagged %q: %w", tag, err)
	}
	return v, nil
}

func stripPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}

// payloadFactories covers every kevent payload struct (payloads.go)
// by its reflect.TypeOf(...).String() name, so round-tripping an
// Event never degrades a known payload into a bare map.
var payloadFactories = map[string]func([]byte) (any, error){
	"kevent.MemoryAllocated":    jsonFactory[kevent.MemoryAllocated](),
	"kevent.MemoryFreed":        jsonFactory[kevent.MemoryFreed](),
	"kevent.MemoryPressure":     jsonFactory[kevent.MemoryPressure](),
	"kevent.ProcessCreated":     jsonFactory[kevent.ProcessCreated](),
	"kevent.ProcessTerminated":  jsonFactory[kevent.ProcessTerminated](),
	"kevent.ResourceCleanup":    jsonFactory[kevent.ResourceCleanup](),
	"kevent.PermissionDenied":   jsonFactory[kevent.PermissionDenied](),
	"kevent.SyscallExit":        jsonFactory[kevent.SyscallExit](),
	"kevent.SyscallSlow":        jsonFactory[kevent.SyscallSlow](),
	"kevent.VFSMutation":        jsonFactory[kevent.VFSMutation](),
	"kevent.SchedulerStep":      jsonFactory[kevent.SchedulerStep](),
	"kevent.SecurityDivergence": jsonFactory[kevent.SecurityDivergence](),
}

func jsonFactory[T any]() func([]byte) (any, error) {
	return func(data []byte) (any, error) {
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
