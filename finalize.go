package strata

import "context"

// FinalizeFunc produces migration SQL from a live connection, for
// migrations whose statement depends on database state (for example a
// dialect probe or a generated backfill).
type FinalizeFunc func(ctx context.Context, conn Conn) (string, error)

// FinalizeUnapplied creates an unapplied migration whose SQL is
// produced by fin against the supplied connection. The no-transaction
// header is honoured if the produced SQL carries one; noTransaction
// forces the flag regardless.
func FinalizeUnapplied(ctx context.Context, conn Conn, inputName string, noTransaction bool, fin FinalizeFunc) (*Migration, error) {
	sql, err := fin(ctx, conn)
	if err != nil {
		return nil, errConnection("unable to finalize query for "+inputName, err, nil)
	}
	m, err := Unapplied(inputName, sql)
	if err != nil {
		return nil, err
	}
	if noTransaction {
		m.content.noTransaction = true
	}
	return m, nil
}
