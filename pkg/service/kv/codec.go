package kv

import "github.com/ugorji/go/codec"

var msgpackHandle codec.MsgpackHandle

// Op identifies the operation a Command or Query carries.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpGet    Op = "get"
)

// Command is the wire envelope for ExecuteCommand operations.
type Command struct {
	Op    Op
	Key   string
	Value []byte
}

// Query is the wire envelope for ExecuteQuery operations.
type Query struct {
	Op  Op
	Key string
}

func encode(v interface{}) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func decode(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, &msgpackHandle)
	return dec.Decode(v)
}

// EncodeCommand/EncodeQuery are exported so callers proposing entries
// (such as pkg/clusterhost's tests) can build LogEntry.Operation payloads
// without reaching into the wire format themselves.
func EncodeCommand(cmd Command) ([]byte, error) { return encode(cmd) }
func EncodeQuery(q Query) ([]byte, error)       { return encode(q) }
