package guestlog

import (
	"fmt"

	"github.com/boozedog/guestlog/internal/snowflake"
	"github.com/valyala/fastjson"
)

// Record is one line of the guest file. The raw text is kept verbatim;
// fields are only looked at when needed.
type Record struct {
	raw string
}

// NewRecord wraps a line of text, without its trailing newline.
func NewRecord(line string) Record {
	return Record{raw: line}
}

// String returns the raw line text.
func (r Record) String() string {
	return r.raw
}

// ID extracts user.id_str and parses it as an unsigned 64-bit integer.
func (r Record) ID() (uint64, error) {
	var p fastjson.Parser
	v, err := p.Parse(r.raw)
	if err != nil {
		return 0, fmt.Errorf("parse record: %w", err)
	}

	user := v.Get("user")
	if user == nil {
		return 0, fmt.Errorf("record has no user")
	}
	if user.Type() != fastjson.TypeObject {
		return 0, fmt.Errorf("record user is %s, want object", user.Type())
	}

	idv := user.Get("id_str")
	if idv == nil {
		return 0, fmt.Errorf("record has no user.id_str")
	}
	idb, err := idv.StringBytes()
	if err != nil {
		return 0, fmt.Errorf("record user.id_str: %w", err)
	}

	return snowflake.Parse(string(idb))
}

// Timestamp returns the creation time encoded in the record's ID, in Unix seconds.
func (r Record) Timestamp() (int64, error) {
	id, err := r.ID()
	if err != nil {
		return 0, err
	}
	return snowflake.Seconds(id), nil
}
