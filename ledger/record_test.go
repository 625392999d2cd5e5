package ledger

import (
	"testing"
	"time"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().Unix()
	rec := &Record{
		AccountID: "8d4f6c1e-1111-2222-3333-444455556666",
		Revoked:   true,
		CreatedAt: now,
		ExpiresAt: now + 3600,
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *rec {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, rec)
	}
}

func TestRecordEncodeRejectsBadAccount(t *testing.T) {
	if _, err := Encode(&Record{AccountID: ""}); err == nil {
		t.Fatal("expected error for empty accountID")
	}

	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := Encode(&Record{AccountID: string(long)}); err == nil {
		t.Fatal("expected error for oversized accountID")
	}
}

func TestRecordDecodeRejectsMalformed(t *testing.T) {
	rec := &Record{AccountID: "acct", CreatedAt: 1, ExpiresAt: 2}
	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string][]byte{
		"empty":         nil,
		"bad version":   append([]byte{9}, data[1:]...),
		"truncated":     data[:len(data)-3],
		"trailing":      append(append([]byte{}, data...), 0xff),
		"zero acct len": {1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 2},
	}
	for name, blob := range cases {
		if _, err := Decode(blob); err == nil {
			t.Fatalf("%s: expected decode error", name)
		}
	}

	// Revoked flag outside {0, 1}.
	bad := append([]byte{}, data...)
	bad[2+len(rec.AccountID)] = 7
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected error for invalid revoked flag")
	}
}
