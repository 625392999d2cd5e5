package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersionCurrent = 1

// Record is one refresh token row. AccountID links the row to its owner;
// Revoked is terminal and covers both consumed and administratively
// revoked tokens. Timestamps are Unix seconds.
type Record struct {
	AccountID string
	Revoked   bool
	CreatedAt int64
	ExpiresAt int64
}

// Encode serializes a [Record] into the versioned binary row format.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if len(r.AccountID) == 0 {
		return nil, errors.New("accountID required")
	}
	if len(r.AccountID) > 255 {
		return nil, errors.New("accountID too long")
	}
	buf.WriteByte(byte(len(r.AccountID)))
	buf.WriteString(r.AccountID)

	if r.Revoked {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary row back into a [Record].
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("invalid record version")
	}

	r := &Record{}

	acctLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if acctLen == 0 {
		return nil, errors.New("invalid record account")
	}
	accountID := make([]byte, acctLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	r.AccountID = string(accountID)

	revoked, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	switch revoked {
	case 0:
		r.Revoked = false
	case 1:
		r.Revoked = true
	default:
		return nil, errors.New("invalid record revoked flag")
	}

	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing record bytes")
	}

	return r, nil
}
