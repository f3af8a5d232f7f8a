package reporter

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message encodings of the Kafka reporter.
const (
	EncodingJSON     = "json"
	EncodingProtobuf = "protobuf" // google.protobuf.Struct with the JSON document's shape
)

func contentType(encoding string) string {
	if encoding == EncodingProtobuf {
		return "application/x-protobuf"
	}
	return "application/json"
}

// encodeDocument serializes doc in the given encoding.
func encodeDocument(doc Document, encoding string) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	switch encoding {
	case "", EncodingJSON:
		return data, nil
	case EncodingProtobuf:
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		st, err := structpb.NewStruct(m)
		if err != nil {
			return nil, err
		}
		return proto.Marshal(st)
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}

func checkEncoding(encoding string) error {
	switch encoding {
	case "", EncodingJSON, EncodingProtobuf:
		return nil
	}
	return fmt.Errorf("unknown encoding %q, want json or protobuf", encoding)
}
