package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics is the log-only view of an error chain.
type Diagnostics struct {
	Message string
	Code    Code
	Chain   []string
	PG      *PGDetail
}

// PGDetail mirrors the fields both postgres drivers report.
type PGDetail struct {
	Code       string
	Message    string
	Detail     string
	Table      string
	Column     string
	Constraint string
}

// Diagnose walks err and pulls postgres detail from pgx or lib/pq errors.
func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T", e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.PG = &PGDetail{
			Code:       pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Constraint: pgxErr.ConstraintName,
		}
	case stdErrors.As(err, &pqErr):
		d.PG = &PGDetail{
			Code:       string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}
	}
	return d
}

// Fields flattens d for structured logging, omitting absent postgres detail.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if d.PG != nil {
		fields["pg_code"] = d.PG.Code
		fields["pg_message"] = d.PG.Message
		set := func(key, value string) {
			if value != "" {
				fields[key] = value
			}
		}
		set("pg_detail", d.PG.Detail)
		set("pg_table", d.PG.Table)
		set("pg_column", d.PG.Column)
		set("pg_constraint", d.PG.Constraint)
	}
	return fields
}
