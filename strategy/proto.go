package strategy

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/removalcache/codec"
	"github.com/unkn0wn-root/removalcache/model"
)

// protoReasons maps Reasons onto a structpb.Struct whose fields are lists of
// strings, and serializes that with the generic protobuf codec.
type protoReasons struct {
	pb codec.Protobuf[*structpb.Struct]
}

var _ codec.Codec[model.Reasons] = protoReasons{}

// ProtoReasons returns the protobuf codec used by the proto document strategy.
func ProtoReasons() codec.Codec[model.Reasons] {
	return protoReasons{pb: codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })}
}

func (c protoReasons) Name() string { return c.pb.Name() }

func (c protoReasons) Encode(r model.Reasons) ([]byte, error) {
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(r))}
	for code, ids := range r {
		vals := make([]*structpb.Value, len(ids))
		for i, id := range ids {
			vals[i] = structpb.NewStringValue(id)
		}
		st.Fields[code] = structpb.NewListValue(&structpb.ListValue{Values: vals})
	}
	return c.pb.Encode(st)
}

func (c protoReasons) Decode(b []byte) (model.Reasons, error) {
	st, err := c.pb.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make(model.Reasons, len(st.GetFields()))
	for code, v := range st.GetFields() {
		list, ok := v.GetKind().(*structpb.Value_ListValue)
		if !ok {
			return nil, fmt.Errorf("reason %q: want list, got %T", code, v.GetKind())
		}
		ids := make([]string, 0, len(list.ListValue.GetValues()))
		for _, iv := range list.ListValue.GetValues() {
			sv, ok := iv.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, fmt.Errorf("reason %q: want string ids, got %T", code, iv.GetKind())
			}
			ids = append(ids, sv.StringValue)
		}
		out[code] = ids
	}
	return out, nil
}
