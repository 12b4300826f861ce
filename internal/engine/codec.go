package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// recordTag identifies the variant of a log record.
type recordTag byte

const (
	tagSet    recordTag = 0x01
	tagRemove recordTag = 0x02
)

// record is a decoded log record. For a Set, Value is non-nil (possibly
// empty); for a Remove, Value is nil.
type record struct {
	Key   []byte
	Value []byte
	isSet bool
}

func setRecord(key, value []byte) record {
	return record{Key: key, Value: value, isSet: true}
}

func removeRecord(key []byte) record {
	return record{Key: key, isSet: false}
}

// encode serializes r using the on-disk framing:
//
//	Set:    0x01 | u32 keyLen LE | key | u32 valueLen LE | value
//	Remove: 0x02 | u32 keyLen LE | key
//
// This framing is the on-disk contract: it must stay byte-for-byte
// compatible across versions of this package.
func (r record) encode() []byte {
	keyLen := len(r.Key)
	if r.isSet {
		buf := make([]byte, 1+4+keyLen+4+len(r.Value))
		buf[0] = byte(tagSet)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(keyLen))
		n := copy(buf[5:], r.Key)
		off := 5 + n
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Value)))
		copy(buf[off+4:], r.Value)
		return buf
	}

	buf := make([]byte, 1+4+keyLen)
	buf[0] = byte(tagRemove)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(keyLen))
	copy(buf[5:], r.Key)
	return buf
}

// decodeRecord decodes exactly one framed record from buf, which must
// contain precisely the bytes of that record (no trailing bytes, no
// truncation). It is used to decode a record read at a known location.
func decodeRecord(buf []byte) (record, error) {
	r, n, err := decodeRecordPrefix(buf)
	if err != nil {
		if errors.Is(err, errShortRead) {
			// A read at a known, previously-indexed location can never
			// legitimately run out of bytes mid-frame; errShortRead never
			// escapes this package, so turn it into ErrCorruptLog here.
			return record{}, fmt.Errorf("%w: incomplete record", ErrCorruptLog)
		}
		return record{}, err
	}
	if n != len(buf) {
		return record{}, fmt.Errorf("%w: trailing bytes in framed region", ErrCorruptLog)
	}
	return r, nil
}

// decodeRecordPrefix decodes one record starting at buf[0] and returns
// the record plus the number of bytes it consumed. It is used by
// sequential replay, where trailing bytes in buf belong to later
// records (or to a truncated tail).
//
// errShortRead is returned (not wrapped in ErrCorruptLog) when buf does
// not contain enough bytes to complete the framing — callers performing
// sequential replay use this to detect a truncated tail record, which
// is tolerated, versus a genuine corruption, which is not.
func decodeRecordPrefix(buf []byte) (record, int, error) {
	if len(buf) < 1 {
		return record{}, 0, errShortRead
	}

	switch recordTag(buf[0]) {
	case tagSet:
		return decodeSetPrefix(buf)
	case tagRemove:
		return decodeRemovePrefix(buf)
	default:
		return record{}, 0, fmt.Errorf("%w: unknown record tag %#x", ErrCorruptLog, buf[0])
	}
}

func decodeSetPrefix(buf []byte) (record, int, error) {
	off := 1
	if len(buf) < off+4 {
		return record{}, 0, errShortRead
	}
	keyLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if len(buf) < off+keyLen {
		return record{}, 0, errShortRead
	}
	key := buf[off : off+keyLen]
	off += keyLen

	if len(buf) < off+4 {
		return record{}, 0, errShortRead
	}
	valLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if len(buf) < off+valLen {
		return record{}, 0, errShortRead
	}
	value := buf[off : off+valLen]
	off += valLen

	out := make([]byte, keyLen+valLen)
	n := copy(out, key)
	copy(out[n:], value)

	return record{Key: out[:keyLen], Value: out[keyLen:], isSet: true}, off, nil
}

func decodeRemovePrefix(buf []byte) (record, int, error) {
	off := 1
	if len(buf) < off+4 {
		return record{}, 0, errShortRead
	}
	keyLen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	if len(buf) < off+keyLen {
		return record{}, 0, errShortRead
	}
	key := make([]byte, keyLen)
	copy(key, buf[off:off+keyLen])
	off += keyLen

	return record{Key: key, isSet: false}, off, nil
}
