package bloomstore

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	recordUserField  protowire.Number = 1
	recordItemsField protowire.Number = 2
)

var ErrCorruptRecord = errors.New("corrupt journal record")

// Record is one Add call as stored in the journal. On the wire it is a
// protobuf message { sint64 user = 1; repeated sint64 items = 2 [packed]; }.
type Record struct {
	UserID  int64
	ItemIDs []int64
}

func (r Record) Marshal() []byte {
	var packed []byte
	for _, id := range r.ItemIDs {
		packed = protowire.AppendVarint(packed, protowire.EncodeZigZag(id))
	}

	out := make([]byte, 0, len(packed)+24)
	out = protowire.AppendTag(out, recordUserField, protowire.VarintType)
	out = protowire.AppendVarint(out, protowire.EncodeZigZag(r.UserID))
	if len(packed) > 0 {
		out = protowire.AppendTag(out, recordItemsField, protowire.BytesType)
		out = protowire.AppendBytes(out, packed)
	}
	return out
}

func UnmarshalRecord(b []byte) (Record, error) {
	var r Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, corrupt(n)
		}
		b = b[n:]

		switch {
		case num == recordUserField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, corrupt(n)
			}
			r.UserID = protowire.DecodeZigZag(v)
			b = b[n:]
		case num == recordItemsField && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return r, corrupt(n)
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return r, corrupt(m)
				}
				r.ItemIDs = append(r.ItemIDs, protowire.DecodeZigZag(v))
				packed = packed[m:]
			}
			b = b[n:]
		case num == recordItemsField && typ == protowire.VarintType:
			// unpacked encoding of the repeated field
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, corrupt(n)
			}
			r.ItemIDs = append(r.ItemIDs, protowire.DecodeZigZag(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, corrupt(n)
			}
			b = b[n:]
		}
	}
	return r, nil
}

func corrupt(n int) error {
	return fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
}
