package gallery

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Blob layout, in protobuf wire format:
//
//	message Gallery {
//	  repeated Embedding embeddings    = 1;
//	  repeated string    identity_keys = 2;
//	}
//	message Embedding {
//	  repeated double values = 1 [packed = true];
//	}
const (
	fieldEmbeddings   protowire.Number = 1
	fieldIdentityKeys protowire.Number = 2
	fieldValues       protowire.Number = 1
)

// Marshal encodes g into the blob format.
func Marshal(g *Gallery) []byte {
	var b []byte
	for i := 0; i < g.Len(); i++ {
		var values []byte
		for _, v := range g.embeddings[i] {
			values = protowire.AppendFixed64(values, math.Float64bits(v))
		}
		var emb []byte
		emb = protowire.AppendTag(emb, fieldValues, protowire.BytesType)
		emb = protowire.AppendBytes(emb, values)

		b = protowire.AppendTag(b, fieldEmbeddings, protowire.BytesType)
		b = protowire.AppendBytes(b, emb)
	}
	for i := 0; i < g.Len(); i++ {
		b = protowire.AppendTag(b, fieldIdentityKeys, protowire.BytesType)
		b = protowire.AppendString(b, g.keys[i])
	}
	return b
}

// Unmarshal decodes a blob. Any framing error or unequal sequence lengths
// is reported as ErrCorruptData. Unknown fields are skipped.
func Unmarshal(b []byte) (*Gallery, error) {
	var (
		embeddings [][]float64
		keys       []string
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptData, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldEmbeddings && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: embedding: %v", ErrCorruptData, protowire.ParseError(n))
			}
			b = b[n:]
			e, err := unmarshalEmbedding(msg)
			if err != nil {
				return nil, err
			}
			embeddings = append(embeddings, e)

		case num == fieldIdentityKeys && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: identity key: %v", ErrCorruptData, protowire.ParseError(n))
			}
			b = b[n:]
			keys = append(keys, s)

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrCorruptData, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return New(embeddings, keys)
}

func unmarshalEmbedding(b []byte) ([]float64, error) {
	var out []float64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: embedding tag: %v", ErrCorruptData, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldValues && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: packed values: %v", ErrCorruptData, protowire.ParseError(n))
			}
			b = b[n:]
			for len(packed) > 0 {
				v, n := protowire.ConsumeFixed64(packed)
				if n < 0 {
					return nil, fmt.Errorf("%w: value: %v", ErrCorruptData, protowire.ParseError(n))
				}
				packed = packed[n:]
				out = append(out, math.Float64frombits(v))
			}

		case num == fieldValues && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: value: %v", ErrCorruptData, protowire.ParseError(n))
			}
			b = b[n:]
			out = append(out, math.Float64frombits(v))

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: embedding field %d: %v", ErrCorruptData, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return out, nil
}
