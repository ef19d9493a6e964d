package postgres

import (
	"net/netip"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// uuidToPgtype converts *uuid.UUID to pgtype.UUID.
func uuidToPgtype(id *uuid.UUID) pgtype.UUID {
	if id == nil || *id == uuid.Nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

// pgtypeToUUIDPtr converts pgtype.UUID to *uuid.UUID.
func pgtypeToUUIDPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

// nullString converts *string to pgtype.Text.
func nullString(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// textPtr converts pgtype.Text to *string.
func textPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// nullInt4 converts *int to pgtype.Int4.
func nullInt4(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

// int4Ptr converts pgtype.Int4 to *int.
func int4Ptr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int32)
	return &n
}

// nullInt8 converts *int64 to pgtype.Int8.
func nullInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

// int8Ptr converts pgtype.Int8 to *int64.
func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// netipToText converts *netip.Addr to pgtype.Text (inet columns stored as
// text; avoids pulling a netip pgtype codec for a single audit column).
func netipToText(addr *netip.Addr) pgtype.Text {
	if addr == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: addr.String(), Valid: true}
}

func textToNetip(v pgtype.Text) *netip.Addr {
	if !v.Valid {
		return nil
	}
	addr, err := netip.ParseAddr(v.String)
	if err != nil {
		return nil
	}
	return &addr
}
