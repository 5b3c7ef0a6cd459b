// Package codec implements the schema-driven serialization surface exposed
// to scripts: define a field layout once, then encode tables to compact
// bit-packed payloads and back. Payloads are opaque to scripts; they exist
// to be handed to command submission and player notification bridges.
package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/immutable"
)

type kind int

const (
	kindSigned kind = iota
	kindUnsigned
	kindBool
	kindF32
	kindF64
	kindString
)

type field struct {
	name string
	kind kind
	bits uint8
}

// Desc is one compiled schema: an ordered field layout.
type Desc struct {
	fields []field
}

// Payload is an encoded value. Opaque: nothing is exported, so scripts that
// hold one can only pass it along.
type Payload struct {
	data []byte
}

// PayloadBytes exposes the raw encoding to host-side collaborators.
func PayloadBytes(p *Payload) []byte { return p.data }

// PayloadFromBytes wraps host-received bytes for handing back to Decode.
func PayloadFromBytes(b []byte) *Payload { return &Payload{data: b} }

// Define compiles a schema table of [name, type] pairs. Types are "bool",
// "f32", "f64", "string", and "iN"/"uN" for N-bit integers.
func Define(rt *goja.Runtime, table *goja.Object) (*Desc, error) {
	length := int(table.Get("length").ToInteger())
	desc := &Desc{fields: make([]field, 0, length)}

	for i := 0; i < length; i++ {
		pairVal := table.Get(strconv.Itoa(i))
		if pairVal == nil || goja.IsUndefined(pairVal) {
			return nil, &fault.MissingRequiredFieldError{What: "schema", Field: strconv.Itoa(i)}
		}
		pair := pairVal.ToObject(rt)
		name := pair.Get("0")
		typ := pair.Get("1")
		if name == nil || typ == nil || goja.IsUndefined(name) || goja.IsUndefined(typ) {
			return nil, &fault.MissingRequiredFieldError{What: "schema entry", Field: "name/type"}
		}

		f, err := parseField(name.String(), typ.String())
		if err != nil {
			return nil, err
		}
		desc.fields = append(desc.fields, f)
	}
	return desc, nil
}

func parseField(name, typ string) (field, error) {
	switch typ {
	case "bool":
		return field{name: name, kind: kindBool, bits: 1}, nil
	case "f32":
		return field{name: name, kind: kindF32, bits: 32}, nil
	case "f64":
		return field{name: name, kind: kindF64, bits: 64}, nil
	case "string":
		return field{name: name, kind: kindString}, nil
	}
	if len(typ) > 1 && (typ[0] == 'i' || typ[0] == 'u') {
		bits, err := strconv.Atoi(typ[1:])
		if err == nil && bits >= 1 && bits <= 64 {
			k := kindUnsigned
			if typ[0] == 'i' {
				k = kindSigned
			}
			return field{name: name, kind: k, bits: uint8(bits)}, nil
		}
	}
	return field{}, &fault.InvalidArgumentError{What: fmt.Sprintf("unknown field type %q", typ)}
}

// Encode packs the named fields of data into a payload.
func (d *Desc) Encode(data *goja.Object) (*Payload, error) {
	var w bitWriter
	for _, f := range d.fields {
		v := data.Get(f.name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil, &fault.MissingRequiredFieldError{What: "encode", Field: f.name}
		}
		switch f.kind {
		case kindSigned:
			w.writeSigned(v.ToInteger(), f.bits)
		case kindUnsigned:
			w.writeBits(uint64(v.ToInteger()), f.bits)
		case kindBool:
			w.writeBool(v.ToBoolean())
		case kindF32:
			w.writeF32(float32(v.ToFloat()))
		case kindF64:
			w.writeF64(v.ToFloat())
		case kindString:
			s := v.String()
			if len(s) > math.MaxUint16 {
				return nil, &fault.InvalidArgumentError{
					What: fmt.Sprintf("field %s: string of %d bytes exceeds the %d-byte limit", f.name, len(s), math.MaxUint16),
				}
			}
			w.writeString(s)
		}
	}
	return &Payload{data: w.buf}, nil
}

// Decode unpacks a payload into a fresh immutable table for scripts.
func (d *Desc) Decode(rt *goja.Runtime, p *Payload) (*goja.Object, error) {
	r := bitReader{buf: p.data}
	entries := make(map[string]goja.Value, len(d.fields))

	for _, f := range d.fields {
		var err error
		switch f.kind {
		case kindSigned:
			var v int64
			if v, err = r.readSigned(f.bits); err == nil {
				entries[f.name] = rt.ToValue(v)
			}
		case kindUnsigned:
			var v uint64
			if v, err = r.readBits(f.bits); err == nil {
				entries[f.name] = rt.ToValue(v)
			}
		case kindBool:
			var v bool
			if v, err = r.readBool(); err == nil {
				entries[f.name] = rt.ToValue(v)
			}
		case kindF32:
			var v float32
			if v, err = r.readF32(); err == nil {
				entries[f.name] = rt.ToValue(float64(v))
			}
		case kindF64:
			var v float64
			if v, err = r.readF64(); err == nil {
				entries[f.name] = rt.ToValue(v)
			}
		case kindString:
			var v string
			if v, err = r.readString(); err == nil {
				entries[f.name] = rt.ToValue(v)
			}
		}
		if err != nil {
			return nil, &fault.InvalidArgumentError{What: fmt.Sprintf("decode %s: %v", f.name, err)}
		}
	}
	return immutable.Wrap(rt, entries), nil
}

// Layout describes the schema for diagnostics, e.g. "x:i32,y:i32,label:string".
func (d *Desc) Layout() string {
	parts := make([]string, len(d.fields))
	for i, f := range d.fields {
		parts[i] = f.name + ":" + typeName(f)
	}
	return strings.Join(parts, ",")
}

func typeName(f field) string {
	switch f.kind {
	case kindBool:
		return "bool"
	case kindF32:
		return "f32"
	case kindF64:
		return "f64"
	case kindString:
		return "string"
	case kindSigned:
		return fmt.Sprintf("i%d", f.bits)
	default:
		return fmt.Sprintf("u%d", f.bits)
	}
}
